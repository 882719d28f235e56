// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 65816 instruction set
// disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/go65816/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = []string{
	"%s",   // IMP
	"#$%s", // IMM
	"$%s",  // ABS
	"$%s",  // ABL
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code at address 'addr' in the CPU's memory.
// Return a 'line' string representing the disassembled instruction and a
// 'next' address that starts the following line of machine code.
// Instructions with a variable-width operand are decoded using the CPU's
// current accumulator size. The next address wraps within the bank, the
// same way the program counter does.
func Disassemble(c *cpu.CPU, addr uint32) (line string, next uint32, err error) {
	inst, err := c.Decode(addr)
	if err != nil {
		return "", addr, err
	}

	l := inst.Length(c.Reg.Acc8())
	operand := make([]byte, l-1)
	for i := range operand {
		operand[i], err = c.Mem.LoadByte(addr + 1 + uint32(i))
		if err != nil {
			return "", addr, err
		}
	}

	if len(operand) == 0 {
		line = inst.Name
	} else {
		format := "%s " + modeFormat[inst.Mode]
		line = fmt.Sprintf(format, inst.Name, hexString(operand))
	}

	bank, offset := cpu.SplitAddress(addr)
	next = cpu.ComposeAddress(bank, offset+uint16(l))
	return line, next, nil
}

// GetRegisterString returns a string describing the contents of the 65816
// registers.
func GetRegisterString(r *cpu.Registers) string {
	return fmt.Sprintf("A=%04X X=%04X Y=%04X SP=%04X D=%04X DB=%02X PB=%02X PS=[%s]",
		r.A, r.X, r.Y, r.SP, r.D, r.DB, r.PB, r.PS.String())
}
