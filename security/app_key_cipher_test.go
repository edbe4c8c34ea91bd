package security

import (
	"bytes"
	"context"
	"testing"
)

func TestAppKeyCipher_EncryptDecryptRoundTrip(t *testing.T) {
	tokenCipher, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("grants-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	plaintext := []byte("gnap-access-token")
	encrypted, err := tokenCipher.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected sealed payload to hide the token")
	}
	if !IsEnvelope(encrypted) {
		t.Fatalf("expected envelope prefix")
	}
	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "grants-v1" || meta.Version != 3 || meta.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected envelope metadata %#v", meta)
	}

	decrypted, err := tokenCipher.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}
}

func TestAppKeyCipher_NonceVariesPerCall(t *testing.T) {
	tokenCipher, err := NewAppKeyCipherFromString("super-secret-test-key")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	first, err := tokenCipher.Encrypt(context.Background(), []byte("token"))
	if err != nil {
		t.Fatalf("encrypt first: %v", err)
	}
	second, err := tokenCipher.Encrypt(context.Background(), []byte("token"))
	if err != nil {
		t.Fatalf("encrypt second: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct ciphertexts for the same token")
	}
}

func TestAppKeyCipher_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("grants-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer cipher: %v", err)
	}
	receiver, err := NewAppKeyCipherFromString("super-secret-test-key", WithKeyID("grants-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver cipher: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestAppKeyCipher_RejectsPlaintextAndWrongKey(t *testing.T) {
	tokenCipher, err := NewAppKeyCipherFromString("key-one")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if _, err := tokenCipher.Decrypt(context.Background(), []byte("plain-token")); err == nil {
		t.Fatalf("expected missing envelope prefix to fail")
	}

	other, err := NewAppKeyCipherFromString("key-two")
	if err != nil {
		t.Fatalf("new other cipher: %v", err)
	}
	sealed, err := other.Encrypt(context.Background(), []byte("token"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := tokenCipher.Decrypt(context.Background(), sealed); err == nil {
		t.Fatalf("expected authentication failure under a different key")
	}
	if _, err := NewAppKeyCipher(nil); err == nil {
		t.Fatalf("expected key material requirement")
	}
}
