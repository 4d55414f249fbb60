package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/pem"
	"testing"

	"golang.org/x/crypto/ssh"
)

// newTestSigner generates a fresh ed25519 SSH key pair.
func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("Failed to wrap signer: %v", err)
	}
	return signer
}

// armorSignature produces the armored sshsig envelope a client would emit
// with `ssh-keygen -Y sign`.
func armorSignature(t *testing.T, signer ssh.Signer, namespace, message string) string {
	t.Helper()

	sum := sha512.Sum512([]byte(message))
	blob := append([]byte(sigMagic), ssh.Marshal(signedData{
		Namespace:     namespace,
		HashAlgorithm: "sha512",
		Hash:          sum[:],
	})...)

	sig, err := signer.Sign(rand.Reader, blob)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	env := sigEnvelope{
		Version:       sigVersion,
		PublicKey:     signer.PublicKey().Marshal(),
		Namespace:     namespace,
		HashAlgorithm: "sha512",
		Signature:     ssh.Marshal(*sig),
	}

	raw := append([]byte(sigMagic), ssh.Marshal(&env)...)
	return string(pem.EncodeToMemory(&pem.Block{Type: sigPEMType, Bytes: raw}))
}

func TestParseSignature_RoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	armored := armorSignature(t, signer, Namespace, "challenge-uuid")

	sig, err := ParseSignature([]byte(armored))
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	if sig.Namespace != Namespace {
		t.Errorf("Expected namespace %q, got %q", Namespace, sig.Namespace)
	}
	if sig.HashAlgorithm != "sha512" {
		t.Errorf("Expected sha512, got %q", sig.HashAlgorithm)
	}

	if err := sig.Verify(signer.PublicKey(), Namespace, []byte("challenge-uuid")); err != nil {
		t.Errorf("Expected signature to verify: %v", err)
	}
}

func TestParseSignature_RejectsGarbage(t *testing.T) {
	if _, err := ParseSignature([]byte("not a signature")); err == nil {
		t.Error("Expected error for non-PEM input")
	}

	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("x")})
	if _, err := ParseSignature(block); err == nil {
		t.Error("Expected error for wrong PEM type")
	}

	block = pem.EncodeToMemory(&pem.Block{Type: sigPEMType, Bytes: []byte("WRONGMAGIC")})
	if _, err := ParseSignature(block); err == nil {
		t.Error("Expected error for missing magic")
	}
}

func TestVerify_WrongMessage(t *testing.T) {
	signer := newTestSigner(t)
	armored := armorSignature(t, signer, Namespace, "challenge-uuid")

	sig, err := ParseSignature([]byte(armored))
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	if err := sig.Verify(signer.PublicKey(), Namespace, []byte("other-message")); err == nil {
		t.Error("Expected verification failure for a different message")
	}
}

func TestVerify_WrongNamespace(t *testing.T) {
	signer := newTestSigner(t)
	armored := armorSignature(t, signer, "file", "challenge-uuid")

	sig, err := ParseSignature([]byte(armored))
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	if err := sig.Verify(signer.PublicKey(), Namespace, []byte("challenge-uuid")); err == nil {
		t.Error("Expected verification failure for a different namespace")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)
	armored := armorSignature(t, signer, Namespace, "challenge-uuid")

	sig, err := ParseSignature([]byte(armored))
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	if err := sig.Verify(other.PublicKey(), Namespace, []byte("challenge-uuid")); err == nil {
		t.Error("Expected verification failure for a different key")
	}
}
