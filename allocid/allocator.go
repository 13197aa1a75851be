package allocid

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
	"golang.org/x/sys/unix"
)

const (
	// counterBytes is the size of the shared region: a single 64-bit
	// counter.
	counterBytes = 8

	// maxZeroRetries bounds how often Next re-increments when the masked
	// 31-bit id comes out zero. Exhausting it is astronomically unlikely but
	// the failure path is part of the contract.
	maxZeroRetries = 16
)

// Options configures an Allocator.
type Options struct {
	// Dir is the directory holding the named shared counter region.
	// Defaults to /dev/shm so the mapping's lifetime is bound to the host
	// session rather than to any one process.
	Dir string
}

// Allocator issues AllocIDs that are unique across all cooperating processes
// on the same host. It is backed by a named shared-memory region holding one
// 64-bit counter which every process increments atomically.
//
// The mapping is created lazily on the first Next call and cached for the
// allocator's lifetime; Close releases it. One Allocator is safe for
// concurrent use.
type Allocator struct {
	mu     sync.Mutex
	path   string
	mapped []byte
	closed bool
}

// Open prepares an allocator over the named counter region. The region
// itself is not mapped until the first Next call.
func Open(name string, opts Options) (*Allocator, error) {
	if name == "" {
		return nil, errors.Wrap(gfxutils.ErrInvalidArgument, "shared counter name must be non-empty")
	}
	dir := opts.Dir
	if dir == "" {
		dir = "/dev/shm"
	}

	return &Allocator{
		path: filepath.Join(dir, name),
	}, nil
}

// counter maps the shared region if needed and returns the counter word.
func (a *Allocator) counter() (*uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, errors.Wrap(gfxutils.ErrInvalidArgument, "allocator is closed")
	}
	if a.mapped == nil {
		fd, err := unix.Open(a.path, unix.O_RDWR|unix.O_CREAT, 0o666)
		if err != nil {
			return nil, errors.Wrapf(err, "opening shared counter %s", a.path)
		}
		if err = unix.Ftruncate(fd, counterBytes); err != nil {
			_ = unix.Close(fd)
			return nil, errors.Wrapf(err, "sizing shared counter %s", a.path)
		}
		mapped, err := unix.Mmap(fd, 0, counterBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		_ = unix.Close(fd)
		if err != nil {
			return nil, errors.Wrapf(err, "mapping shared counter %s", a.path)
		}
		a.mapped = mapped
	}

	return (*uint64)(unsafe.Pointer(&a.mapped[0])), nil
}

// Next returns a fresh AllocID, or 0 if the shared region cannot be mapped
// or the bounded retries are exhausted while masked values keep coming
// out zero. Callers must treat 0 as "no id available" and fail the enclosing
// object creation; it must never be substituted with a made-up id.
func (a *Allocator) Next() AllocID {
	counter, err := a.counter()
	if err != nil {
		return 0
	}

	for attempt := 0; attempt < maxZeroRetries; attempt++ {
		token := atomic.AddUint64(counter, 1)
		id := AllocID(token) & MaxAllocID
		if id != 0 {
			return id
		}
	}
	return 0
}

// Close unmaps the shared region. The counter itself persists for the host
// session so other processes (and reopened allocators) continue from the
// same sequence.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.mapped == nil {
		return nil
	}
	mapped := a.mapped
	a.mapped = nil
	if err := unix.Munmap(mapped); err != nil {
		return errors.Wrapf(err, "unmapping shared counter %s", a.path)
	}
	return nil
}
