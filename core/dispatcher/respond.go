package dispatcher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/iclass/poto/core/codec"
)

// streamBufSize is the copy buffer for byte-stream responses. Chunks are
// flushed as they arrive so the client observes incremental delivery.
const streamBufSize = 32 << 10

// doneFrame terminates a successful event stream.
const doneFrame = `{"__done": true}`

// respond renders a method's return value using one of three framings:
// an io.Reader streams as raw bytes, a channel streams as server-sent
// events, and anything else is encoded through the codec as a single JSON
// body.
func (d *Dispatcher) respond(ctx *requestContext, w http.ResponseWriter, out any) error {
	if r, ok := out.(io.Reader); ok {
		return d.streamBytes(ctx, w, r)
	}
	if rv := reflect.ValueOf(out); rv.IsValid() && rv.Kind() == reflect.Chan {
		return d.streamEvents(ctx, w, rv)
	}
	return d.writeValue(ctx, w, out)
}

// writeValue encodes a single value as the whole response body. A result
// computed for a caller that already disconnected is discarded unwritten.
func (d *Dispatcher) writeValue(ctx *requestContext, w http.ResponseWriter, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := d.codec.EncodeContext(ctx, out)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(payload)
	return err
}

// streamBytes copies a reader to the client, flushing each chunk. The
// content type defaults to octet-stream unless the handler staged its own
// through the carrier. The reader is closed when it is a Closer, including
// on client disconnect.
func (d *Dispatcher) streamBytes(ctx *requestContext, w http.ResponseWriter, r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, streamBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// streamEvents drains a channel as server-sent events. Every received value
// becomes one encoded data frame; channel close emits the terminal done
// frame. A received error value becomes a terminal error frame and ends the
// stream. Client disconnect stops the drain, which unblocks producers that
// honor the carrier's Done channel.
func (d *Dispatcher) streamEvents(ctx *requestContext, w http.ResponseWriter, ch reflect.Value) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	done := reflect.ValueOf(ctx.Done())
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectRecv, Chan: done},
	}

	for {
		chosen, v, ok := reflect.Select(cases)
		if chosen == 1 {
			return ctx.Err()
		}
		if !ok {
			return writeFrame(w, flusher, []byte(doneFrame))
		}

		item := v.Interface()
		if err, isErr := item.(error); isErr && err != nil {
			payload, encErr := d.codec.EncodeContext(ctx, asRemoteError(err))
			if encErr != nil {
				return encErr
			}
			return writeFrame(w, flusher, payload)
		}

		payload, err := d.codec.EncodeContext(ctx, item)
		if err != nil {
			payload, encErr := d.codec.EncodeContext(ctx, asRemoteError(err))
			if encErr != nil {
				return encErr
			}
			return writeFrame(w, flusher, payload)
		}
		if err := writeFrame(w, flusher, payload); err != nil {
			return err
		}
	}
}

// writeFrame emits one server-sent event.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// asRemoteError lifts any error into the codec's wire error form, keeping
// name and message when the value already is one.
func asRemoteError(err error) *codec.RemoteError {
	var re *codec.RemoteError
	if errors.As(err, &re) {
		return re
	}
	return &codec.RemoteError{Name: "Error", Message: err.Error()}
}

// writeError sends a plain-text error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// writeErrorValue sends an encoded error envelope with the given status,
// used for handler failures so the client can reconstruct the error.
func (d *Dispatcher) writeErrorValue(ctx *requestContext, w http.ResponseWriter, status int, err error) {
	payload, encErr := d.codec.EncodeContext(ctx, asRemoteError(err))
	if encErr != nil {
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
