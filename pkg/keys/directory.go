// Package keys resolves user names to SSH public keys and verifies
// challenge signatures for the ticket upgrade flow.
package keys

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/bytebeam/internal/logger"
)

// Namespace is the sshsig signing namespace clients must use when signing
// a ticket challenge.
const Namespace = "bytebeam"

// fetchTimeout bounds each keyserver request made at construction time.
const fetchTimeout = 10 * time.Second

// Directory maps user names to their SSH public keys.
//
// Each entry in the configured user list is either a raw public key in
// OpenSSH authorized-keys line format, stored verbatim under the full line,
// or a plain user name whose keys are fetched once from the keyserver.
type Directory struct {
	keyserver string // URL template containing "{}" where the user name goes
	users     map[string][]ssh.PublicKey
	client    *http.Client
}

// NewDirectory builds a Directory from the configured users, consulting the
// keyserver for entries that do not parse as public keys. Keyserver failures
// are non-fatal: the user is simply absent from the directory.
func NewDirectory(keyserver string, users []string) *Directory {
	d := &Directory{
		keyserver: keyserver,
		users:     make(map[string][]ssh.PublicKey),
		client:    &http.Client{Timeout: fetchTimeout},
	}

	for _, user := range users {
		if key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(user)); err == nil {
			logger.Debug("User provided as raw SSH key", "fingerprint", ssh.FingerprintSHA256(key))
			d.users[user] = []ssh.PublicKey{key}
			continue
		}

		keys, err := d.fetchKeys(user)
		if err != nil {
			logger.Error("Failed to get keys from keyserver", logger.User(user), logger.Err(err))
			continue
		}
		d.users[user] = keys
	}

	return d
}

// fetchKeys performs one GET against the keyserver URL template and parses
// the body as an authorized_keys stream.
func (d *Directory) fetchKeys(name string) ([]ssh.PublicKey, error) {
	if d.keyserver == "" {
		return nil, fmt.Errorf("no keyserver configured")
	}

	url := strings.ReplaceAll(d.keyserver, "{}", name)
	logger.Debug("Checking keyserver", "url", url, logger.User(name))

	resp, err := d.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("keyserver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyserver returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyserver response: %w", err)
	}

	var out []ssh.PublicKey
	rest := body
	for len(rest) > 0 {
		key, _, _, remaining, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			logger.Warn("Could not parse SSH key from keyserver", logger.Err(err))
			break
		}
		out = append(out, key)
		rest = remaining
	}

	return out, nil
}

// Users reports how many users have at least one resolved key.
func (d *Directory) Users() int {
	return len(d.users)
}

// Verify reports whether response is a valid sshsig signature by user over
// the raw challenge bytes. Unknown users, malformed signatures and
// non-verifying keys all yield false; callers never distinguish.
func (d *Directory) Verify(user, challenge, response string) bool {
	userKeys, ok := d.users[user]
	if !ok {
		return false
	}

	sig, err := ParseSignature([]byte(response))
	if err != nil {
		logger.Debug("Failed to parse SSH signature", logger.Err(err))
		return false
	}

	for _, key := range userKeys {
		if err := sig.Verify(key, Namespace, []byte(challenge)); err == nil {
			return true
		}
	}

	return false
}
