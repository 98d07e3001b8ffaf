// Package codec implements a type-preserving serialization codec over a JSON
// envelope. Rich values — dates, regular expressions, big integers, ordered
// maps and sets, binary buffers, typed views, blobs, errors, and URLs —
// round-trip through tagged JSON objects, while plain scalars stay bare JSON
// so receivers without rich-type support can still parse the payload.
//
// Every composite node receives a reference id on first encounter; later
// encounters of the same identity are emitted as {"__ref": n} citations, so
// shared subgraphs and cycles encode in linear size and decode back to shared
// shells. Plain records decode into *Object, which preserves key order.
//
// Basic usage:
//
//	data, err := codec.Encode(map[string]any{
//		"when":  time.Now(),
//		"big":   new(big.Int).Lsh(big.NewInt(1), 64),
//		"items": codec.NewSet(1, 2, 3),
//	})
//	...
//	v, err := codec.Decode(data)
//
// Blobs carry lazily-read payloads and therefore require the context-aware
// entry point:
//
//	data, err := codec.EncodeContext(ctx, codec.NewBlob(payload, "image/png"))
//
// Encode refuses blob graphs with ErrNeedsAsync. Decoding is always
// synchronous.
//
// # Numeric domain
//
// The envelope's untagged numeric domain is the 64-bit float, so bare JSON
// numbers decode as float64. Integers outside the safe range travel tagged
// and decode as int64 or uint64; arbitrary precision integers use *big.Int.
//
// # Limits
//
// Depth, string length, and binary payload ceilings default to 20 levels,
// 10 MiB, and 50 MiB and are configurable per codec. Guards fire before
// resources proportional to the excess are allocated.
package codec
