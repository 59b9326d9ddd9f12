package crypto

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newService(t *testing.T, seed byte) *Service {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed + byte(i)
	}
	svc, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	svc := newService(t, 1)
	for _, plaintext := range []string{"", "hi", "a longer message with unicode: ñ 👍"} {
		ciphertext, err := svc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		if ciphertext == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext for %q", plaintext)
		}
		got, err := svc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plaintext {
			t.Errorf("roundtrip = %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	svc := newService(t, 1)
	a, _ := svc.Encrypt("same input")
	b, _ := svc.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	ciphertext, err := newService(t, 1).Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = newService(t, 2).Decrypt(ciphertext)
	if !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt with wrong key = %v, want ErrDecrypt", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	svc := newService(t, 1)
	for _, input := range []string{"", "not base64 !!!", "aGVsbG8="} {
		if _, err := svc.Decrypt(input); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Decrypt(%q) = %v, want ErrDecrypt", input, err)
		}
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Error("New accepted a short key")
	}
	if _, err := NewFromHex("zz"); err == nil {
		t.Error("NewFromHex accepted invalid hex")
	}
}

func TestTokenLifecycle(t *testing.T) {
	svc := newService(t, 1)

	token, err := svc.IssueToken(time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if !svc.VerifyToken(token) {
		t.Error("fresh token failed verification")
	}

	expired, err := svc.IssueToken(-time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if svc.VerifyToken(expired) {
		t.Error("expired token passed verification")
	}
}

func TestVerifyTokenNeverPanicsOnGarbage(t *testing.T) {
	svc := newService(t, 1)
	for _, input := range []string{"", "garbage", strings.Repeat("a.", 50)} {
		if svc.VerifyToken(input) {
			t.Errorf("VerifyToken(%q) = true", input)
		}
	}
}

func TestTokenRejectsForeignKey(t *testing.T) {
	token, _ := newService(t, 1).IssueToken(time.Minute)
	if newService(t, 2).VerifyToken(token) {
		t.Error("token signed with a different key passed verification")
	}
}
