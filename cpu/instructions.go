// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"strings"
	"sync"
)

// An opsym is an internal symbol used to associate an opcode's data
// with its instructions.
type opsym byte

const (
	symADC opsym = iota
	symCLC
	symCLV
	symLDA
	symNOP
	symREP
	symSEC
	symSEP
	symSTA
	symSTP
	symWDM
)

type instfunc func(c *CPU, inst *Instruction, op Operand) (running bool, cycles int, err error)

// Emulator implementation for each opcode
type opcodeImpl struct {
	sym  opsym
	name string
	fn   instfunc
}

var impl = []opcodeImpl{
	{symADC, "ADC", (*CPU).adc},
	{symCLC, "CLC", (*CPU).clc},
	{symCLV, "CLV", (*CPU).clv},
	{symLDA, "LDA", (*CPU).lda},
	{symNOP, "NOP", (*CPU).nop},
	{symREP, "REP", (*CPU).rep},
	{symSEC, "SEC", (*CPU).sec},
	{symSEP, "SEP", (*CPU).sep},
	{symSTA, "STA", (*CPU).sta},
	{symSTP, "STP", (*CPU).stp},
	{symWDM, "WDM", (*CPU).wdm},
}

// Mode describes a memory addressing mode.
type Mode byte

// All implemented memory addressing modes
const (
	IMP Mode = iota // Implied
	IMM             // Immediate
	ABS             // Absolute, high byte from the data bank register
	ABL             // Absolute long, bank supplied by the instruction
)

// Width describes the size of an instruction's operand.
type Width byte

// Operand widths
const (
	WidthNone     Width = iota // no operand
	WidthByte                  // 8-bit operand
	WidthWord                  // 16-bit operand
	WidthLong                  // 16-bit operand followed by a bank byte
	WidthVariable              // 8-bit if AccSize is set, otherwise 16-bit
)

var widthNames = []string{"none", "byte", "word", "long", "variable"}

func (w Width) String() string {
	if int(w) < len(widthNames) {
		return widthNames[w]
	}
	return "invalid"
}

// Resolve returns the concrete width of the operand given the current
// accumulator size.
func (w Width) Resolve(acc8 bool) Width {
	if w != WidthVariable {
		return w
	}
	if acc8 {
		return WidthByte
	}
	return WidthWord
}

// Length returns the number of machine code bytes used by an instruction
// of this width, including the opcode.
func (w Width) Length(acc8 bool) byte {
	switch w.Resolve(acc8) {
	case WidthByte:
		return 2
	case WidthWord:
		return 3
	case WidthLong:
		return 4
	default:
		return 1
	}
}

// Opcode data for an (opcode, mode) pair
type opcodeData struct {
	sym    opsym // internal opcode key value
	mode   Mode  // addressing mode
	opcode byte  // opcode hex value
	width  Width // operand width
}

// All implemented (opcode, mode) pairs
var data = []opcodeData{
	{symADC, IMM, 0x69, WidthVariable},
	{symADC, ABS, 0x6d, WidthWord},
	{symADC, ABL, 0x6f, WidthLong},

	{symLDA, IMM, 0xa9, WidthVariable},
	{symLDA, ABS, 0xad, WidthWord},
	{symLDA, ABL, 0xaf, WidthLong},

	{symSTA, ABS, 0x8d, WidthWord},
	{symSTA, ABL, 0x8f, WidthLong},

	{symCLC, IMP, 0x18, WidthNone},
	{symSEC, IMP, 0x38, WidthNone},
	{symCLV, IMP, 0xb8, WidthNone},

	{symREP, IMM, 0xc2, WidthByte},
	{symSEP, IMM, 0xe2, WidthByte},

	{symNOP, IMP, 0xea, WidthNone},
	{symWDM, IMM, 0x42, WidthByte},
	{symSTP, IMP, 0xdb, WidthNone},
}

// An Instruction describes a CPU instruction, including its name,
// its function implementation, and other metadata.
type Instruction struct {
	Name        string // string representation of the opcode
	Mode        Mode   // addressing mode
	Opcode      byte   // hexadecimal opcode value
	Width       Width  // operand width
	Implemented bool   // false for opcodes that fall back to STP
	fn          instfunc
}

// Length returns the number of bytes occupied by the instruction given the
// current accumulator size.
func (inst *Instruction) Length(acc8 bool) byte {
	return inst.Width.Length(acc8)
}

// An InstructionSet defines the set of all possible instructions that
// can run on the emulated CPU.
type InstructionSet struct {
	instructions [256]Instruction
	variants     map[string][]*Instruction
}

// Lookup retrieves a CPU instruction corresponding to the requested opcode.
// Every opcode has an entry; opcodes without an implementation halt the CPU.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// GetInstructions returns all CPU instructions whose name matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

const unusedName = "???"

// Create the instruction set.
func newInstructionSet() *InstructionSet {
	set := &InstructionSet{}

	// Create a map from symbol to implementation for fast lookups.
	symToImpl := make(map[opsym]*opcodeImpl, len(impl))
	for i := range impl {
		symToImpl[impl[i].sym] = &impl[i]
	}

	set.variants = make(map[string][]*Instruction)

	// Every opcode starts out as a halt.
	for i := range set.instructions {
		set.instructions[i] = Instruction{
			Name:   unusedName,
			Mode:   IMP,
			Opcode: byte(i),
			Width:  WidthNone,
			fn:     (*CPU).stp,
		}
	}

	for _, d := range data {
		impl := symToImpl[d.sym]
		inst := &set.instructions[d.opcode]
		inst.Name = impl.name
		inst.Mode = d.mode
		inst.Width = d.width
		inst.Implemented = true
		inst.fn = impl.fn

		set.variants[inst.Name] = append(set.variants[inst.Name], inst)
	}

	return set
}

var (
	instructionSet     *InstructionSet
	instructionSetOnce sync.Once
)

// GetInstructionSet returns the 65816 instruction set.
func GetInstructionSet() *InstructionSet {
	instructionSetOnce.Do(func() {
		instructionSet = newInstructionSet()
	})
	return instructionSet
}
