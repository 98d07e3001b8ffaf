package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxCookieSize is the maximum serialized size for a cookie (4KB).
const MaxCookieSize = 4096

// Sealer encrypts and authenticates cookie payloads. Payloads are sealed
// with AES-256-GCM under a fresh 96-bit nonce per write, then wrapped with
// an outer HMAC-SHA256 signature over iv || tag || ciphertext. The sealed
// value is the colon-joined string signature:iv:tag:ciphertext with each
// component standard base-64.
type Sealer struct {
	encKey []byte
	macKey []byte
}

// NewSealer derives the encryption and signing keys from secret and returns
// a ready Sealer.
func NewSealer(secret string) (*Sealer, error) {
	encKey, macKey, err := deriveKeys(secret)
	if err != nil {
		return nil, err
	}
	return &Sealer{encKey: encKey, macKey: macKey}, nil
}

// Seal encrypts and signs plaintext into the transportable cookie value.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:split], sealed[split:]

	signature := s.sign(iv, tag, ciphertext)

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(signature),
		enc.EncodeToString(iv),
		enc.EncodeToString(tag),
		enc.EncodeToString(ciphertext),
	}, ":"), nil
}

// Open verifies and decrypts a sealed cookie value. The signature is checked
// in constant time before any decryption is attempted.
func (s *Sealer) Open(value string) ([]byte, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return nil, ErrInvalidFormat
	}

	enc := base64.StdEncoding
	segments := make([][]byte, 4)
	for i, p := range parts {
		b, err := enc.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		segments[i] = b
	}
	signature, iv, tag, ciphertext := segments[0], segments[1], segments[2], segments[3]

	expected := s.sign(iv, tag, ciphertext)
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return nil, ErrInvalidSignature
	}

	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, ErrInvalidFormat
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (s *Sealer) sign(iv, tag, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, s.macKey)
	mac.Write(iv)
	mac.Write(tag)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// Set writes a cookie with the fixed attribute policy: Path=/, HttpOnly,
// SameSite=Strict, and Secure when the request arrived over TLS.
func Set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) error {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r != nil && r.TLS != nil,
	}

	if header := c.String(); len(header) > MaxCookieSize {
		return ErrCookieTooLarge{Name: name, Size: len(header), Max: MaxCookieSize}
	}

	http.SetCookie(w, c)
	return nil
}

// Get returns the named cookie's value from the request.
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

// Delete expires the named cookie by writing an empty value with Max-Age=0.
func Delete(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r != nil && r.TLS != nil,
	})
}
