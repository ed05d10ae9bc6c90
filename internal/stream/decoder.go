// Package stream decodes Server-Sent-Events frames from a response body
// into typed JSON events. The backend frames every event as a single
// `data: <json>` line; blank separator lines are tolerated but not
// required.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// dataPrefix marks a payload-carrying SSE line.
const dataPrefix = "data: "

// readChunkSize is the buffer size for incremental body reads.
const readChunkSize = 4096

// Event is one decoded frame. Raw holds the complete JSON object so
// callers can unmarshal their own payload shape for the given Type.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Decoder assembles SSE lines from arbitrary byte chunks. A line split
// across two chunks is parsed exactly once, after both halves arrive.
// The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends a chunk and returns every event completed by it, in
// transmission order. Lines without the `data: ` prefix and lines whose
// payload is not valid JSON are dropped without error - a malformed
// frame must never abort the stream.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		if event, ok := parseLine(line); ok {
			events = append(events, event)
		}
	}

	return events
}

// parseLine decodes a single complete line into an Event.
func parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return Event{}, false
	}
	payload := line[len(dataPrefix):]

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		// Malformed frame, skip the line.
		return Event{}, false
	}

	raw := make(json.RawMessage, len(payload))
	copy(raw, payload)

	return Event{Type: probe.Type, Raw: raw}, true
}

// Decode reads r to completion, invoking onEvent for each decoded event
// in order. It stops early if ctx is cancelled or onEvent returns an
// error. Any partial line left in the buffer at EOF is discarded: a
// terminal event must always be explicit from the producer, never
// inferred from stream end.
func Decode(ctx context.Context, r io.Reader, onEvent func(Event) error) error {
	var dec Decoder
	chunk := make([]byte, readChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, event := range dec.Feed(chunk[:n]) {
				if err := onEvent(event); err != nil {
					return err
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading event stream: %w", readErr)
		}
	}
}
