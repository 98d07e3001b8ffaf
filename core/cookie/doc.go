// Package cookie seals session payloads into tamper-evident HTTP cookies.
//
// A Sealer derives two independent 32-byte keys from one process-wide secret
// via scrypt (fixed salts, interactive-grade cost): one for AES-256-GCM
// encryption, one for an outer HMAC-SHA256 signature. Every write uses a
// fresh 96-bit nonce. The sealed value is four standard base-64 segments
// joined by colons:
//
//	signature:iv:tag:ciphertext
//
// where the signature covers iv || tag || ciphertext. Open verifies the
// signature in constant time before touching the ciphertext, so tampered
// values are rejected without exercising the decryption path.
//
//	sealer, err := cookie.NewSealer(cfg.Secret)
//	...
//	value, err := sealer.Seal(payload)
//	err = cookie.Set(w, r, "poto_session", value, cfg.SessionMaxAge)
//
//	raw, err := cookie.Get(r, "poto_session")
//	payload, err := sealer.Open(raw)
//
// Set applies a fixed attribute policy (Path=/, HttpOnly, SameSite=Strict,
// Secure over TLS) and refuses values whose serialized header exceeds 4KB.
// Delete expires a cookie by writing an empty value with Max-Age=0.
package cookie
