package codec

import (
	"context"
	"io"
	"log/slog"
)

const (
	// DefaultMaxDepth is the default recursion ceiling for encode and decode.
	DefaultMaxDepth = 20
	// DefaultMaxStringLen is the default string ceiling (10 MiB).
	DefaultMaxStringLen = 10 << 20
	// DefaultMaxBlobBytes is the default ceiling for blobs and byte buffers (50 MiB).
	DefaultMaxBlobBytes = 50 << 20
)

// Codec converts rich value graphs to a self-describing JSON envelope and
// back, preserving type tags and reference identity. The zero configuration
// (via New) applies the default ceilings. A Codec is safe for concurrent use.
type Codec struct {
	maxDepth     int
	maxStringLen int
	maxBlobBytes int
	logger       *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxDepth sets the recursion ceiling for encode and decode.
func WithMaxDepth(depth int) Option {
	return func(c *Codec) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithMaxStringLen sets the string ceiling in bytes.
func WithMaxStringLen(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxStringLen = n
		}
	}
}

// WithMaxBlobBytes sets the blob and byte buffer ceiling in bytes.
func WithMaxBlobBytes(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxBlobBytes = n
		}
	}
}

// WithLogger sets the logger used for non-fatal warnings, such as encoding
// a typed view with a non-zero byte offset.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Codec with the given options.
func New(opts ...Option) *Codec {
	c := &Codec{
		maxDepth:     DefaultMaxDepth,
		maxStringLen: DefaultMaxStringLen,
		maxBlobBytes: DefaultMaxBlobBytes,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = New()

// Encode serializes v through the default codec. It fails with ErrNeedsAsync
// if the graph contains blobs.
func Encode(v any) ([]byte, error) { return defaultCodec.Encode(v) }

// EncodeContext serializes v through the default codec, reading blob payloads.
func EncodeContext(ctx context.Context, v any) ([]byte, error) {
	return defaultCodec.EncodeContext(ctx, v)
}

// Decode deserializes an envelope through the default codec.
func Decode(data []byte) (any, error) { return defaultCodec.Decode(data) }

// IsTypePreserved reports whether data uses the tag vocabulary, using the
// default codec's depth ceiling.
func IsTypePreserved(data []byte) bool { return defaultCodec.IsTypePreserved(data) }
