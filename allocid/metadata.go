package allocid

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

const (
	// MetadataMagic is "VGMO" read as a little-endian u32.
	MetadataMagic uint32 = 0x4F4D4756

	MetadataVersion uint32 = 1

	// MetadataSize is the encoded size of ObjectMetadata: magic, version,
	// alloc id, flags, share token, size, reserved. Packed, no internal
	// padding, stable across 32- and 64-bit processes.
	MetadataSize = 40
)

// MetadataFlagShared marks an object that carries a valid ShareToken.
const MetadataFlagShared uint32 = 1 << 0

// ObjectMetadata is the persistent per-object blob embedded at creation
// time. It is written once by the creating process and is read-only input to
// the host and to any process that reopens the object; the host never writes
// it back.
type ObjectMetadata struct {
	AllocID    AllocID
	Flags      uint32
	ShareToken ShareToken
	SizeBytes  uint64
}

// Shared reports whether the object was created shared.
func (m ObjectMetadata) Shared() bool {
	return m.Flags&MetadataFlagShared != 0
}

// Marshal encodes the blob in its fixed wire layout.
func (m ObjectMetadata) Marshal() [MetadataSize]byte {
	var out [MetadataSize]byte
	binary.LittleEndian.PutUint32(out[0:4], MetadataMagic)
	binary.LittleEndian.PutUint32(out[4:8], MetadataVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(m.AllocID))
	binary.LittleEndian.PutUint32(out[12:16], m.Flags)
	binary.LittleEndian.PutUint64(out[16:24], uint64(m.ShareToken))
	binary.LittleEndian.PutUint64(out[24:32], m.SizeBytes)
	// out[32:40] reserved, zero.
	return out
}

// UnmarshalObjectMetadata decodes and verifies a blob previously written by
// Marshal, typically recovered from an object reopened by another process.
func UnmarshalObjectMetadata(buf []byte) (ObjectMetadata, error) {
	var m ObjectMetadata
	if len(buf) < MetadataSize {
		return m, errors.Wrapf(gfxutils.ErrInvalidArgument, "metadata blob is %d bytes, need %d", len(buf), MetadataSize)
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != MetadataMagic {
		return m, errors.Wrapf(gfxutils.ErrInvalidArgument, "bad metadata magic 0x%08x", magic)
	}
	if version := binary.LittleEndian.Uint32(buf[4:8]); version != MetadataVersion {
		return m, errors.Wrapf(gfxutils.ErrInvalidArgument, "unsupported metadata version %d", version)
	}

	m.AllocID = AllocID(binary.LittleEndian.Uint32(buf[8:12]))
	m.Flags = binary.LittleEndian.Uint32(buf[12:16])
	m.ShareToken = ShareToken(binary.LittleEndian.Uint64(buf[16:24]))
	m.SizeBytes = binary.LittleEndian.Uint64(buf[24:32])

	if m.AllocID == 0 || m.AllocID > MaxAllocID {
		return m, errors.Wrapf(gfxutils.ErrAllocIDOutOfRange, "metadata carries alloc id %d", m.AllocID)
	}
	return m, nil
}
