// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// A Flag identifies one bit of the processor status register.
type Flag byte

// Processor status flags, in bit order.
const (
	Carry      Flag = iota // C
	Zero                   // Z
	IRQDisable             // I
	Decimal                // D
	IndexSize              // X: 8-bit index registers when set
	AccSize                // M: 8-bit accumulator when set
	Overflow               // V
	Negative               // N

	numFlags
)

var flagNames = [numFlags]string{
	"Carry", "Zero", "IRQDisable", "Decimal",
	"IndexSize", "AccSize", "Overflow", "Negative",
}

// String returns the name of the flag.
func (f Flag) String() string {
	if f >= numFlags {
		return "Invalid"
	}
	return flagNames[f]
}

// Mask returns the bit occupied by the flag in the packed status byte.
func (f Flag) Mask() byte {
	return 1 << f
}

// Status contains the processor status flags. The flags are held both as
// individual booleans and as the packed byte the 65816 pushes on the stack;
// every mutation updates the two views together.
type Status struct {
	flags  [numFlags]bool
	packed byte
}

func (s *Status) set(f Flag, on bool) {
	s.flags[f] = on
	if on {
		s.packed |= f.Mask()
	} else {
		s.packed &^= f.Mask()
	}
}

// Get returns true if the flag is set.
func (s Status) Get(f Flag) bool {
	return s.flags[f]
}

// Byte returns the packed status byte.
func (s Status) Byte() byte {
	return s.packed
}

// String returns the flags as "NVMXDIZC", with clear flags in lower case.
func (s Status) String() string {
	const letters = "czidxmvn"
	var b [numFlags]byte
	for f := Flag(0); f < numFlags; f++ {
		c := letters[f]
		if s.flags[f] {
			c -= 'a' - 'A'
		}
		b[numFlags-1-f] = c
	}
	return string(b[:])
}

// Registers contains the state of all 65816 registers.
type Registers struct {
	A  uint16 // accumulator
	X  uint16 // X index register
	Y  uint16 // Y index register
	SP uint16 // stack pointer
	D  uint16 // direct page
	DB byte   // data bank
	PB byte   // program bank
	PC uint16 // program counter, offset within PB
	PS Status // processor status
}

// Reset vector used when a register set is initialized.
const (
	ResetBank = 0x80
	ResetPC   = 0x8000
)

// NewRegisters returns a register set in its reset state.
func NewRegisters() Registers {
	var r Registers
	r.Init()
	return r
}

// Init initializes all registers. PB:PC = $80:8000, every flag is clear and
// all other registers are zero.
func (r *Registers) Init() {
	*r = Registers{
		PB: ResetBank,
		PC: ResetPC,
	}
}

// SetFlag sets a status flag. Setting AccSize truncates the accumulator to
// its low byte; setting IndexSize does the same for X and Y.
func (r *Registers) SetFlag(f Flag) {
	r.PS.set(f, true)
	switch f {
	case AccSize:
		r.A &= 0x00ff
	case IndexSize:
		r.X &= 0x00ff
		r.Y &= 0x00ff
	}
}

// ClearFlag clears a status flag. Register contents are left unchanged.
func (r *Registers) ClearFlag(f Flag) {
	r.PS.set(f, false)
}

// GetFlag returns true if the status flag is set.
func (r *Registers) GetFlag(f Flag) bool {
	return r.PS.Get(f)
}

// SetFlagTo sets the flag if 'on' is true and clears it otherwise.
func (r *Registers) SetFlagTo(f Flag, on bool) {
	if on {
		r.SetFlag(f)
	} else {
		r.ClearFlag(f)
	}
}

// RestorePS restores all status flags from a packed status byte.
func (r *Registers) RestorePS(ps byte) {
	for f := Flag(0); f < numFlags; f++ {
		r.SetFlagTo(f, ps&f.Mask() != 0)
	}
}

// Acc8 returns true if the accumulator is in 8-bit mode.
func (r *Registers) Acc8() bool {
	return r.PS.flags[AccSize]
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
