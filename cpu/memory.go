// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMemoryOutOfBounds = errors.New("memory access out of bounds")
)

// AddressSpace is the size of the 24-bit 65816 address space.
const AddressSpace = 1 << 24

// A MemoryError describes a failed memory access.
type MemoryError struct {
	Op   string // "load" or "store"
	Addr uint32 // first address of the access
	Size int    // number of bytes accessed
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("%s of %d byte(s) at $%06X: %v", e.Op, e.Size, e.Addr, ErrMemoryOutOfBounds)
}

// Unwrap returns ErrMemoryOutOfBounds.
func (e *MemoryError) Unwrap() error {
	return ErrMemoryOutOfBounds
}

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur. Addresses are 24-bit and never wrap; an access
// outside the memory image returns an error.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint32) (byte, error)

	// LoadWord loads a little-endian 16-bit value from the address.
	LoadWord(addr uint32) (uint16, error)

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint32, v byte) error

	// StoreWord stores a little-endian 16-bit value to the address.
	StoreWord(addr uint32, v uint16) error
}

// ComposeAddress combines a bank and a 16-bit offset into a 24-bit address.
func ComposeAddress(bank byte, offset uint16) uint32 {
	return uint32(bank)<<16 | uint32(offset)
}

// SplitAddress splits a 24-bit address into its bank and offset.
func SplitAddress(addr uint32) (bank byte, offset uint16) {
	return byte(addr >> 16), uint16(addr)
}

// FlatMemory represents the address space as a single buffer starting at
// address $000000.
type FlatMemory struct {
	b []byte
}

// NewFlatMemory creates a memory image of 'size' bytes. The size must not
// exceed the 16MB address space.
func NewFlatMemory(size int) *FlatMemory {
	if size <= 0 || size > AddressSpace {
		panic("memory size must be between 1 byte and 16MB")
	}
	return &FlatMemory{b: make([]byte, size)}
}

// Size returns the number of addressable bytes.
func (m *FlatMemory) Size() int {
	return len(m.b)
}

func (m *FlatMemory) check(op string, addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(len(m.b)) {
		return &MemoryError{Op: op, Addr: addr, Size: n}
	}
	return nil
}

// LoadByte loads a single byte from the address and returns it.
func (m *FlatMemory) LoadByte(addr uint32) (byte, error) {
	if err := m.check("load", addr, 1); err != nil {
		return 0, err
	}
	return m.b[addr], nil
}

// LoadWord loads a little-endian 16-bit value from the address.
func (m *FlatMemory) LoadWord(addr uint32) (uint16, error) {
	if err := m.check("load", addr, 2); err != nil {
		return 0, err
	}
	return uint16(m.b[addr]) | uint16(m.b[addr+1])<<8, nil
}

// LoadBytes loads len(b) bytes starting at the address into 'b'.
func (m *FlatMemory) LoadBytes(addr uint32, b []byte) error {
	if err := m.check("load", addr, len(b)); err != nil {
		return err
	}
	copy(b, m.b[addr:])
	return nil
}

// StoreByte stores a byte at the requested address.
func (m *FlatMemory) StoreByte(addr uint32, v byte) error {
	if err := m.check("store", addr, 1); err != nil {
		return err
	}
	m.b[addr] = v
	return nil
}

// StoreWord stores a little-endian 16-bit value at the address.
func (m *FlatMemory) StoreWord(addr uint32, v uint16) error {
	if err := m.check("store", addr, 2); err != nil {
		return err
	}
	m.b[addr] = byte(v)
	m.b[addr+1] = byte(v >> 8)
	return nil
}

// StoreBytes stores the contents of 'b' starting at the address.
func (m *FlatMemory) StoreBytes(addr uint32, b []byte) error {
	if err := m.check("store", addr, len(b)); err != nil {
		return err
	}
	copy(m.b[addr:], b)
	return nil
}
