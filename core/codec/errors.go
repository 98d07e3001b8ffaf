package codec

import "errors"

var (
	// ErrDepth is returned when encoding or decoding exceeds the configured depth ceiling.
	ErrDepth = errors.New("codec: value graph exceeds maximum depth")
	// ErrSizeLimit is returned when a string, buffer, or blob exceeds its configured ceiling.
	ErrSizeLimit = errors.New("codec: value exceeds size limit")
	// ErrNeedsAsync is returned by Encode when the graph contains a blob.
	// Blob payloads are read through EncodeContext.
	ErrNeedsAsync = errors.New("codec: blob values require EncodeContext")
	// ErrMalformedTag is returned when a tagged envelope node has the wrong shape.
	ErrMalformedTag = errors.New("codec: malformed tag")
	// ErrBadBase64 is returned when binary payload data is not valid base64.
	ErrBadBase64 = errors.New("codec: invalid base64 payload")
	// ErrUnknownTag is returned when an envelope uses an unrecognized reserved tag.
	ErrUnknownTag = errors.New("codec: unknown tag")
	// ErrUnsupportedType is returned when the encoder meets a value it cannot represent.
	ErrUnsupportedType = errors.New("codec: unsupported type")
)
