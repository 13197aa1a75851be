package cmdstream

import (
	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// Walk decodes the stream header and visits every packet in order. It stops
// early if fn returns an error. The stream is validated as it is walked: a
// truncated or misaligned packet aborts the walk with an
// ErrInvalidArgument-wrapped error before fn sees it.
func Walk(stream []byte, fn func(pkt Packet) error) error {
	header, err := DecodeStreamHeader(stream)
	if err != nil {
		return err
	}

	size := int(header.SizeBytes)
	off := StreamHeaderSize
	for off < size {
		if size-off < PacketHeaderSize {
			return errors.Wrapf(gfxutils.ErrInvalidArgument, "truncated packet header at offset %d", off)
		}
		hdr := decodePacketHeader(stream[off:])
		pktSize := int(hdr.SizeBytes)
		if pktSize < PacketHeaderSize || !gfxutils.IsAligned(pktSize, PacketAlign) || pktSize > size-off {
			return errors.Wrapf(gfxutils.ErrInvalidArgument, "invalid packet at offset %d: size %d, %d bytes remain", off, pktSize, size-off)
		}

		if fn != nil {
			err = fn(Packet{
				Offset:  off,
				Opcode:  hdr.Opcode,
				Payload: stream[off+PacketHeaderSize : off+pktSize],
			})
			if err != nil {
				return err
			}
		}

		off += pktSize
	}

	if off != size {
		return errors.Wrapf(gfxutils.ErrInvalidArgument, "packet walk ended at offset %d, stream declares %d", off, size)
	}
	return nil
}

// Validate walks the stream and reports the first structural problem.
func Validate(stream []byte) error {
	return Walk(stream, nil)
}
