package cookie

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSecret indicates no secret was provided for key derivation.
	ErrNoSecret = errors.New("no secret provided for cookie sealing")

	// ErrInvalidFormat indicates the cookie value does not match the
	// signature:iv:tag:ciphertext framing.
	ErrInvalidFormat = errors.New("invalid sealed cookie format")

	// ErrInvalidSignature indicates the outer HMAC did not verify,
	// suggesting tampering or corruption.
	ErrInvalidSignature = errors.New("cookie signature verification failed")

	// ErrDecryptionFailed indicates the payload could not be decrypted,
	// possibly due to corruption or use of the wrong key.
	ErrDecryptionFailed = errors.New("failed to decrypt cookie value")

	// ErrCookieNotFound indicates the requested cookie doesn't exist in the request.
	ErrCookieNotFound = errors.New("cookie not found in request")
)

// ErrCookieTooLarge indicates the cookie exceeds the maximum allowed size.
type ErrCookieTooLarge struct {
	Name string
	Size int
	Max  int
}

// Error implements the error interface.
func (e ErrCookieTooLarge) Error() string {
	return fmt.Sprintf("cookie %q size %d exceeds maximum %d bytes", e.Name, e.Size, e.Max)
}
