// Package jitmem provides the executable-memory JIT runtime that allocates
// a page of executable memory, copies a finalized byte stream into it, and
// hands back a callable function pointer. No cgo is used; mapping and
// protection go through golang.org/x/sys/unix directly.
package jitmem

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/cult/pkg/types"
)

var (
	ErrAlloc   = errors.New("jitmem: mmap failed")
	ErrProtect = errors.New("jitmem: mprotect failed")
)

// Func wraps one JIT-compiled probe function. Its only supported shape is
// fn(iter uint32, out *uint64). The underlying page is owned exclusively
// by the Func for its lifetime: created inside a single measurement call
// and released before that call returns.
type Func struct {
	page []byte
}

// Load maps code into a fresh RW-then-RX page and returns a callable
// handle. code must already be the finalized bytes of a function using
// the System V AMD64 calling convention (RDI = iter, RSI = out-pointer).
func Load(code []byte) (*Func, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty code", ErrAlloc)
	}
	size := pageAlign(len(code))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlloc, err)
	}
	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("%w: %v", ErrProtect, err)
	}
	return &Func{page: mem}, nil
}

// callAsm is implemented in jitmem_amd64.s: it loads iter/outPtr into the
// System V AMD64 argument registers (RDI/RSI) and calls entry directly, no
// cgo involved.
func callAsm(entry uintptr, iter uint32, outPtr uintptr)

// Call invokes the probe function: fn(iter, &out) and returns out.
func (f *Func) Call(iter uint32) uint64 {
	var out uint64
	entry := uintptr(unsafe.Pointer(&f.page[0]))
	callAsm(entry, iter, uintptr(unsafe.Pointer(&out)))
	return out
}

// Size reports the mapped page size backing the probe, rounded up to the
// page granularity Load allocates at.
func (f *Func) Size() types.Bytes { return types.Bytes(len(f.page)) }

// Release unmaps the executable page. The Func must not be called again
// afterward.
func (f *Func) Release() error {
	if f.page == nil {
		return nil
	}
	err := unix.Munmap(f.page)
	f.page = nil
	return err
}

func pageAlign(n int) int {
	const pageSize = 4096
	if n%pageSize == 0 {
		return n
	}
	return (n/pageSize + 1) * pageSize
}
