// Package allocid mints the stable identifiers that let a guest memory
// object be referenced consistently by reference tables, by the host
// emulator and by other guest processes that open the same shared object.
package allocid

// AllocID identifies a guest memory object. Values are unique across all
// cooperating processes on one host for the lifetime of the host session.
// Zero is reserved/invalid, and values above MaxAllocID are reserved for
// internal host use and never produced by the allocator.
type AllocID uint32

// MaxAllocID is the largest id the allocator will produce; the high bit is
// reserved for the host.
const MaxAllocID AllocID = 0x7FFFFFFF

// ShareToken identifies a single underlying object across every process that
// has opened it. It is only present on objects marked shared and is
// currently defined as numerically equal to the object's AllocID.
type ShareToken uint64

// TokenForID derives the share token for an object with the given id.
func TokenForID(id AllocID) ShareToken {
	return ShareToken(id)
}
