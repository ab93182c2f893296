package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
)

const (
	readChunkSize  = 32 << 10
	maxLoggedBytes = 256

	DefaultMaxLineSize = 4 << 20
)

// Decoder turns a hybrid SSE/NDJSON byte stream into events. Bytes may be
// fed in arbitrary chunks; lines are only interpreted once their newline has
// arrived, so a split never changes the event sequence.
type Decoder struct {
	dialect   Dialect
	acc       *accumulator
	buf       []byte
	eventName string
	done      bool
	skipped   int

	// buf[:scanned] holds no newline
	scanned    int
	maxLine    int
	discarding bool
}

type DecoderOption func(*Decoder)

// WithMaxLineSize bounds the bytes buffered for a single line. A longer
// line is dropped and counted as skipped.
func WithMaxLineSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxLine = n
		}
	}
}

// WithIDGenerator sets the id source for tool calls the server sent without
// an id.
func WithIDGenerator(fn func() string) DecoderOption {
	return func(d *Decoder) {
		d.acc.newID = fn
	}
}

func NewDecoder(dialect Dialect, opts ...DecoderOption) *Decoder {
	if dialect == nil {
		dialect = CurrentDialect{}
	}
	d := &Decoder{
		dialect: dialect,
		maxLine: DefaultMaxLineSize,
		acc:     newAccumulator(func() string { return "call_" + strings.ToLower(ulid.Make().String()) }),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Done reports whether a terminal event has been produced.
func (d *Decoder) Done() bool { return d.done }

// Skipped is the number of lines dropped as malformed JSON or oversized.
func (d *Decoder) Skipped() int { return d.skipped }

// Feed appends a chunk and returns the events of every line it completed.
// Nothing is returned once the stream has ended.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []Event
	consumed := 0
	for !d.done {
		i := bytes.IndexByte(d.buf[d.scanned:], '\n')
		if i < 0 {
			break
		}
		end := d.scanned + i
		if d.discarding {
			d.discarding = false
		} else {
			events = append(events, d.line(d.buf[consumed:end])...)
		}
		consumed = end + 1
		d.scanned = consumed
	}

	switch {
	case d.done:
		d.buf = nil
	case consumed > 0:
		d.buf = append([]byte(nil), d.buf[consumed:]...)
	}

	if !d.done {
		switch {
		case d.discarding:
			d.buf = d.buf[:0]
		case len(d.buf) > d.maxLine:
			d.skipped++
			slog.Warn("Dropping oversized stream line", "dialect", d.dialect.Name(), "limit", d.maxLine, "line", truncate(d.buf))
			d.buf = d.buf[:0]
			d.discarding = true
		}
	}
	d.scanned = len(d.buf)
	return events
}

// Close flushes a trailing line without newline and, unless the stream has
// already ended, emits StreamEnded with the calls accumulated so far.
func (d *Decoder) Close() []Event {
	if d.done {
		return nil
	}

	var events []Event
	if !d.discarding && len(bytes.TrimSpace(d.buf)) > 0 {
		events = d.line(d.buf)
	}
	d.buf = nil
	if !d.done {
		events = append(events, StreamEnded{ToolCalls: d.acc.snapshot()})
		d.done = true
	}
	return events
}

// Decode reads r until a terminal event or EOF, passing every event to emit.
// ctx is checked between reads; an error from emit stops decoding and is
// returned unchanged.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, emit func(Event) error) error {
	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, ev := range d.Feed(chunk[:n]) {
				if err := emit(ev); err != nil {
					return err
				}
			}
			if d.done {
				return nil
			}
		}

		if errors.Is(readErr, io.EOF) {
			slog.Debug("Stream closed without terminal event", "dialect", d.dialect.Name(), "pending", len(d.buf))
			for _, ev := range d.Close() {
				if err := emit(ev); err != nil {
					return err
				}
			}
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func (d *Decoder) line(raw []byte) []Event {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return nil
	}

	if name, ok := bytes.CutPrefix(line, []byte("event:")); ok {
		d.eventName = string(bytes.TrimSpace(name))
		return nil
	}

	payload := line
	if data, ok := bytes.CutPrefix(payload, []byte("data:")); ok {
		payload = bytes.TrimSpace(data)
	}
	if len(payload) == 0 || payload[0] != '{' {
		return nil
	}

	if !gjson.ValidBytes(payload) {
		d.skipped++
		slog.Debug("Skipping malformed stream line", "dialect", d.dialect.Name(), "line", truncate(payload))
		return nil
	}

	parsed := gjson.ParseBytes(payload)
	kind := parsed.Get(d.dialect.Discriminator()).String()
	if kind == "" {
		kind = d.eventName
	}

	events := d.dialect.decode(kind, parsed, d.acc)
	for i, ev := range events {
		if _, ok := ev.(StreamEnded); ok {
			d.done = true
			return events[:i+1]
		}
	}
	return events
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedBytes {
		return string(b)
	}
	return string(b[:maxLoggedBytes]) + "..."
}
