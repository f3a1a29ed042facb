package github

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// SealSecret encrypts a secret value against a repository's base64-encoded
// Actions public key using an anonymous sealed box (the libsodium
// crypto_box_seal construction GitHub requires). Returns the base64-encoded
// ciphertext suitable for the secrets API.
func SealSecret(publicKeyB64, secret string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode repository public key: %w", err)
	}
	if len(decoded) != 32 {
		return "", fmt.Errorf("repository public key must be 32 bytes, got %d", len(decoded))
	}

	var publicKey [32]byte
	copy(publicKey[:], decoded)

	sealed, err := box.SealAnonymous(nil, []byte(secret), &publicKey, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}
