package cmdstream

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// Wire layout shared with the host. A command buffer begins with a stream
// header, followed by a sequence of packets each beginning with a packet
// header. All fields are little-endian with no internal padding.
const (
	// StreamMagic is "VGCS" read as a little-endian u32.
	StreamMagic uint32 = 0x53434756

	StreamVersion uint32 = 1

	// StreamHeaderSize is the encoded size of StreamHeader.
	StreamHeaderSize = 16

	// PacketHeaderSize is the encoded size of PacketHeader. It is also the
	// minimum legal packet size.
	PacketHeaderSize = 8

	// PacketAlign is the required alignment of every packet's declared size.
	PacketAlign uint = 4
)

// StreamHeader prefixes every command buffer handed to the host.
type StreamHeader struct {
	Magic   uint32
	Version uint32
	// SizeBytes is the total stream length in bytes, header included. Hosts
	// ignore any trailing bytes past it.
	SizeBytes uint32
	Flags     uint32
}

func (h StreamHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint32(dst[4:8], h.Version)
	binary.LittleEndian.PutUint32(dst[8:12], h.SizeBytes)
	binary.LittleEndian.PutUint32(dst[12:16], h.Flags)
}

// DecodeStreamHeader reads and sanity-checks the stream header at the start
// of buf.
func DecodeStreamHeader(buf []byte) (StreamHeader, error) {
	var h StreamHeader
	if len(buf) < StreamHeaderSize {
		return h, errors.Wrapf(gfxutils.ErrInvalidArgument, "stream is %d bytes, shorter than its %d-byte header", len(buf), StreamHeaderSize)
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.SizeBytes = binary.LittleEndian.Uint32(buf[8:12])
	h.Flags = binary.LittleEndian.Uint32(buf[12:16])

	if h.Magic != StreamMagic {
		return h, errors.Wrapf(gfxutils.ErrInvalidArgument, "bad stream magic 0x%08x", h.Magic)
	}
	if h.Version != StreamVersion {
		return h, errors.Wrapf(gfxutils.ErrInvalidArgument, "unsupported stream version %d", h.Version)
	}
	if int(h.SizeBytes) < StreamHeaderSize || int(h.SizeBytes) > len(buf) {
		return h, errors.Wrapf(gfxutils.ErrInvalidArgument, "stream declares %d bytes, buffer holds %d", h.SizeBytes, len(buf))
	}

	return h, nil
}

// PacketHeader prefixes every command packet. SizeBytes includes the header,
// is 4-byte aligned and at least PacketHeaderSize. Unknown opcodes are
// skipped by consumers using SizeBytes.
type PacketHeader struct {
	Opcode    uint32
	SizeBytes uint32
}

func (h PacketHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Opcode)
	binary.LittleEndian.PutUint32(dst[4:8], h.SizeBytes)
}

func decodePacketHeader(buf []byte) PacketHeader {
	return PacketHeader{
		Opcode:    binary.LittleEndian.Uint32(buf[0:4]),
		SizeBytes: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// Packet is one decoded command packet as seen by Walk. Payload aliases the
// walked stream and includes any alignment padding the writer added.
type Packet struct {
	Offset  int
	Opcode  uint32
	Payload []byte
}

// PacketSize returns the encoded size of a packet with the given payload
// length, including the header and alignment padding.
func PacketSize(payloadLen int) int {
	return gfxutils.AlignUp(PacketHeaderSize+payloadLen, PacketAlign)
}
