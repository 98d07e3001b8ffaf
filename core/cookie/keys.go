package cookie

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Fixed derivation salts. Two independent keys come out of one user-supplied
// secret so a flaw in one primitive cannot compromise the other.
const (
	encryptionSalt = "encryption-salt"
	signingSalt    = "signing-salt"
)

// scrypt cost parameters (interactive-grade defaults).
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// deriveKeys stretches the secret into a 32-byte encryption key and a
// 32-byte signing key.
func deriveKeys(secret string) (encKey, macKey []byte, err error) {
	if secret == "" {
		return nil, nil, ErrNoSecret
	}

	encKey, err = scrypt.Key([]byte(secret), []byte(encryptionSalt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving encryption key: %w", err)
	}
	macKey, err = scrypt.Key([]byte(secret), []byte(signingSalt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving signing key: %w", err)
	}
	return encKey, macKey, nil
}
