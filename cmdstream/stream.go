package cmdstream

import (
	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// Writer accumulates command packets into a growing buffer primed with a
// stream header. It is not synchronized; one writer belongs to one
// recording session.
type Writer struct {
	buf     []byte
	packets int
}

func NewWriter() *Writer {
	w := &Writer{
		buf: make([]byte, StreamHeaderSize, 4096),
	}
	w.writeHeader()
	return w
}

func (w *Writer) writeHeader() {
	StreamHeader{
		Magic:     StreamMagic,
		Version:   StreamVersion,
		SizeBytes: uint32(len(w.buf)),
	}.encode(w.buf)
}

// Len returns the current stream length in bytes, header included.
func (w *Writer) Len() int { return len(w.buf) }

// PacketCount returns the number of packets appended since the last Reset.
func (w *Writer) PacketCount() int { return w.packets }

// Empty reports whether no packets have been appended since the last Reset.
func (w *Writer) Empty() bool { return len(w.buf) == StreamHeaderSize }

// AppendFixed appends a packet with a zeroed payload of payloadLen bytes and
// returns a view of that payload for the caller to fill in. The view is only
// valid until the next Append/AppendFixed/Reset call.
func (w *Writer) AppendFixed(opcode uint32, payloadLen int) ([]byte, error) {
	if opcode == 0 {
		return nil, errors.Wrap(gfxutils.ErrInvalidArgument, "packet opcode must be non-zero")
	}
	if payloadLen < 0 {
		return nil, errors.Wrapf(gfxutils.ErrInvalidArgument, "negative payload length %d", payloadLen)
	}

	size := PacketSize(payloadLen)
	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, size)...)
	PacketHeader{
		Opcode:    opcode,
		SizeBytes: uint32(size),
	}.encode(w.buf[start:])
	w.packets++

	return w.buf[start+PacketHeaderSize : start+PacketHeaderSize+payloadLen], nil
}

// Append appends a packet carrying a copy of payload, padded to the packet
// alignment.
func (w *Writer) Append(opcode uint32, payload []byte) error {
	view, err := w.AppendFixed(opcode, len(payload))
	if err != nil {
		return err
	}
	copy(view, payload)
	return nil
}

// Finalize stamps the stream header's length field and returns the stream
// bytes. The writer remains usable; appending after Finalize requires
// another Finalize before submission.
func (w *Writer) Finalize() []byte {
	w.writeHeader()
	return w.buf
}

// Bytes returns the stream as written so far without restamping the header.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset discards all appended packets, keeping the underlying buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:StreamHeaderSize]
	w.packets = 0
	w.writeHeader()
}

// Validate checks the recorded stream's packet walk.
func (w *Writer) Validate() error {
	return Validate(w.Finalize())
}
