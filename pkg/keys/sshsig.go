package keys

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// The armored envelope produced by `ssh-keygen -Y sign` (PROTOCOL.sshsig).
const (
	sigPEMType = "SSH SIGNATURE"
	sigMagic   = "SSHSIG"
	sigVersion = 1
)

// Signature is a parsed sshsig envelope.
type Signature struct {
	PublicKey     ssh.PublicKey
	Namespace     string
	HashAlgorithm string
	signature     *ssh.Signature
}

// sigEnvelope mirrors the wire layout after the 6-byte magic preamble.
type sigEnvelope struct {
	Version       uint32
	PublicKey     []byte
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Signature     []byte
}

// signedData mirrors the blob the signature actually covers.
type signedData struct {
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Hash          []byte
}

// ParseSignature decodes an armored sshsig blob.
func ParseSignature(armored []byte) (*Signature, error) {
	block, _ := pem.Decode(armored)
	if block == nil || block.Type != sigPEMType {
		return nil, fmt.Errorf("not an armored SSH signature")
	}

	if !bytes.HasPrefix(block.Bytes, []byte(sigMagic)) {
		return nil, fmt.Errorf("missing %s magic preamble", sigMagic)
	}

	var env sigEnvelope
	if err := ssh.Unmarshal(block.Bytes[len(sigMagic):], &env); err != nil {
		return nil, fmt.Errorf("malformed signature envelope: %w", err)
	}
	if env.Version != sigVersion {
		return nil, fmt.Errorf("unsupported signature version %d", env.Version)
	}

	key, err := ssh.ParsePublicKey(env.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("malformed public key in signature: %w", err)
	}

	var sig ssh.Signature
	if err := ssh.Unmarshal(env.Signature, &sig); err != nil {
		return nil, fmt.Errorf("malformed inner signature: %w", err)
	}

	return &Signature{
		PublicKey:     key,
		Namespace:     env.Namespace,
		HashAlgorithm: env.HashAlgorithm,
		signature:     &sig,
	}, nil
}

// Verify checks the signature over message for the given namespace using
// the supplied key. The envelope's declared hash algorithm is honored;
// sha512 is what clients produce for ticket challenges.
func (s *Signature) Verify(key ssh.PublicKey, namespace string, message []byte) error {
	if s.Namespace != namespace {
		return fmt.Errorf("signature namespace %q, want %q", s.Namespace, namespace)
	}

	// The signer must hold the same key we resolved for the user.
	if !bytes.Equal(key.Marshal(), s.PublicKey.Marshal()) {
		return fmt.Errorf("signature key does not match")
	}

	var digest []byte
	switch s.HashAlgorithm {
	case "sha512":
		sum := sha512.Sum512(message)
		digest = sum[:]
	case "sha256":
		sum := sha256.Sum256(message)
		digest = sum[:]
	default:
		return fmt.Errorf("unsupported hash algorithm %q", s.HashAlgorithm)
	}

	blob := append([]byte(sigMagic), ssh.Marshal(signedData{
		Namespace:     namespace,
		HashAlgorithm: s.HashAlgorithm,
		Hash:          digest,
	})...)

	return key.Verify(blob, s.signature)
}
