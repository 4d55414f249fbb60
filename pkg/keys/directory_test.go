package keys

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

// authorizedKeyLine renders a signer's public key in authorized_keys
// format.
func authorizedKeyLine(t *testing.T, signer ssh.Signer) string {
	t.Helper()
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
}

func TestNewDirectory_RawKeyEntry(t *testing.T) {
	signer := newTestSigner(t)
	line := authorizedKeyLine(t, signer)

	d := NewDirectory("", []string{line})

	if d.Users() != 1 {
		t.Fatalf("Expected 1 user, got %d", d.Users())
	}

	// A raw key entry is addressed by the full authorized_keys line.
	armored := armorSignature(t, signer, Namespace, "challenge")
	if !d.Verify(line, "challenge", armored) {
		t.Error("Expected raw key entry to verify its own signature")
	}
}

func TestNewDirectory_KeyserverFetch(t *testing.T) {
	signer := newTestSigner(t)
	line := authorizedKeyLine(t, signer)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alice.keys" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, line)
	}))
	defer srv.Close()

	d := NewDirectory(srv.URL+"/{}.keys", []string{"alice"})

	if d.Users() != 1 {
		t.Fatalf("Expected 1 user, got %d", d.Users())
	}

	armored := armorSignature(t, signer, Namespace, "challenge")
	if !d.Verify("alice", "challenge", armored) {
		t.Error("Expected fetched key to verify")
	}
}

func TestNewDirectory_KeyserverFailureNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDirectory(srv.URL+"/{}.keys", []string{"ghost"})

	if d.Users() != 0 {
		t.Errorf("Expected missing user to be absent, got %d users", d.Users())
	}
	if d.Verify("ghost", "challenge", "whatever") {
		t.Error("Expected verification to fail for an absent user")
	}
}

func TestVerify_UnknownUser(t *testing.T) {
	d := NewDirectory("", nil)

	if d.Verify("nobody", "challenge", "sig") {
		t.Error("Expected verification to fail for unknown user")
	}
}

func TestVerify_MalformedSignature(t *testing.T) {
	signer := newTestSigner(t)
	line := authorizedKeyLine(t, signer)

	d := NewDirectory("", []string{line})

	if d.Verify(line, "challenge", "garbage") {
		t.Error("Expected malformed signature to fail verification")
	}
}
