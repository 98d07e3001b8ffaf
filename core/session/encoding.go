package session

import (
	"context"
	"errors"
	"time"

	"github.com/iclass/poto/core/codec"
)

// encodeRecord serializes a record through the typed codec so rich session
// values (dates, maps, binary) survive storage round trips.
func encodeRecord(ctx context.Context, c *codec.Codec, rec *Record) ([]byte, error) {
	obj := codec.NewObject().
		Set("principal_id", rec.PrincipalID).
		Set("created_at", rec.CreatedAt).
		Set("last_activity", rec.LastActivity).
		Set("data", rec.Data)
	return c.EncodeContext(ctx, obj)
}

// decodeRecord deserializes a stored record payload.
func decodeRecord(c *codec.Codec, payload []byte) (*Record, error) {
	decoded, err := c.Decode(payload)
	if err != nil {
		return nil, err
	}
	obj, ok := decoded.(*codec.Object)
	if !ok {
		return nil, errors.New("session payload is not a record")
	}

	rec := &Record{Data: make(map[string]any)}
	if v, ok := obj.Get("principal_id"); ok {
		rec.PrincipalID, _ = v.(string)
	}
	if v, ok := obj.Get("created_at"); ok {
		rec.CreatedAt, _ = v.(time.Time)
	}
	if v, ok := obj.Get("last_activity"); ok {
		rec.LastActivity, _ = v.(time.Time)
	}
	if rec.PrincipalID == "" || rec.CreatedAt.IsZero() || rec.LastActivity.IsZero() {
		return nil, errors.New("session payload missing required fields")
	}

	if v, ok := obj.Get("data"); ok {
		switch data := v.(type) {
		case *codec.Object:
			for _, k := range data.Keys() {
				val, _ := data.Get(k)
				rec.Data[k] = val
			}
		case *codec.Map:
			// Reserved-looking keys force the encoder into map form.
			for _, e := range data.Entries() {
				if k, ok := e.Key.(string); ok {
					rec.Data[k] = e.Value
				}
			}
		default:
			return nil, errors.New("session payload data is not a mapping")
		}
	}
	return rec, nil
}
