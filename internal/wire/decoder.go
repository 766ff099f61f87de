package wire

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Decoder extracts frames from a byte stream fed in arbitrary chunks.
// Scan state survives between calls so a frame split across reads is
// only scanned once. A Decoder is not safe for concurrent use.
type Decoder struct {
	log *zap.Logger
	max int

	buf      []byte
	pos      int // next byte to scan
	start    int // offset of the opening brace, -1 when outside a frame
	depth    int
	inString bool
	escaped  bool
}

func NewDecoder(log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{log: log, max: MaxBufferSize, start: -1}
}

// Feed appends raw bytes read from the connection.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports how many bytes are waiting to be framed.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Next returns the next complete frame. ok is false with a nil error when more
// input is needed. A non-nil error reports one bad frame (already consumed) or
// a buffer overflow (buffer discarded); either way the caller may keep calling
// Next on the same Decoder.
func (d *Decoder) Next() (f Frame, ok bool, err error) {
	end, found := d.scan()
	if !found {
		if len(d.buf) > d.max {
			dropped := len(d.buf)
			d.reset()
			d.log.Warn("discarding oversized frame buffer", zap.Int("bytes", dropped), zap.Int("limit", d.max))
			return Frame{}, false, fmt.Errorf("%w: %d bytes", ErrBufferOverflow, dropped)
		}
		return Frame{}, false, nil
	}

	raw := d.buf[d.start:end]
	err = json.Unmarshal(raw, &f)
	d.consume(end)
	if err != nil {
		d.log.Warn("dropping malformed frame", zap.Error(err))
		return Frame{}, false, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return f, true, nil
}

// scan advances through the buffer until a zero-depth closing brace is seen.
func (d *Decoder) scan() (end int, found bool) {
	for ; d.pos < len(d.buf); d.pos++ {
		c := d.buf[d.pos]

		if d.start < 0 {
			if c == '{' {
				d.start = d.pos
				d.depth = 1
			}
			continue
		}

		if d.inString {
			switch {
			case d.escaped:
				d.escaped = false
			case c == '\\':
				d.escaped = true
			case c == '"':
				d.inString = false
			}
			continue
		}

		switch c {
		case '"':
			d.inString = true
		case '{':
			d.depth++
		case '}':
			d.depth--
			if d.depth == 0 {
				d.pos++
				return d.pos, true
			}
		}
	}

	// nothing but noise so far
	if d.start < 0 && len(d.buf) > 0 {
		d.log.Debug("skipping bytes outside a frame", zap.Int("bytes", len(d.buf)))
		d.buf = d.buf[:0]
		d.pos = 0
	}
	return 0, false
}

func (d *Decoder) consume(end int) {
	n := copy(d.buf, d.buf[end:])
	d.buf = d.buf[:n]
	d.pos = 0
	d.start = -1
	d.depth = 0
	d.inString = false
	d.escaped = false
}

func (d *Decoder) reset() {
	d.buf = nil
	d.consume(0)
}
