// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Add a value and the carry flag to the accumulator, updating the C, V, N
// and Z flags.
func (cpu *CPU) add(v uint16) {
	carry := boolToUint32(cpu.Reg.GetFlag(Carry))

	if cpu.Reg.Acc8() {
		a, b := uint32(cpu.Reg.A&0xff), uint32(v&0xff)
		sum := a + b + carry
		signed := int32(int8(a)) + int32(int8(b)) + int32(carry)

		cpu.Reg.SetFlagTo(Carry, sum > 0xff)
		cpu.Reg.SetFlagTo(Overflow, signed < -0x80 || signed > 0x7f)
		cpu.Reg.SetFlagTo(Negative, sum&0x80 != 0)
		cpu.Reg.A = uint16(sum & 0xff)
	} else {
		a, b := uint32(cpu.Reg.A), uint32(v)
		sum := a + b + carry
		signed := int32(int16(a)) + int32(int16(b)) + int32(carry)

		cpu.Reg.SetFlagTo(Carry, sum > 0xffff)
		cpu.Reg.SetFlagTo(Overflow, signed < -0x8000 || signed > 0x7fff)
		cpu.Reg.SetFlagTo(Negative, sum&0x8000 != 0)
		cpu.Reg.A = uint16(sum)
	}

	cpu.Reg.SetFlagTo(Zero, cpu.Reg.A == 0)
}

// Return the cycle cost of an accumulator instruction. Immediate operands
// cost 2 cycles in 8-bit mode and 3 in 16-bit mode; absolute operands
// cost 4, or 5 with an explicit bank.
func (cpu *CPU) accCycles(mode Mode) int {
	switch mode {
	case IMM:
		if cpu.Reg.Acc8() {
			return 2
		}
		return 3
	case ABS:
		return 4
	default:
		return 5
	}
}

// Add with carry. An operand (or dereferenced value) of zero costs one
// extra cycle.
func (cpu *CPU) adc(inst *Instruction, op Operand) (bool, int, error) {
	v, err := cpu.load(inst.Mode, op)
	if err != nil {
		return true, 0, err
	}

	cycles := cpu.accCycles(inst.Mode)
	if v == 0 {
		cycles++
	}

	cpu.add(v)
	return true, cycles, nil
}

// Load accumulator
func (cpu *CPU) lda(inst *Instruction, op Operand) (bool, int, error) {
	v, err := cpu.load(inst.Mode, op)
	if err != nil {
		return true, 0, err
	}

	cycles := cpu.accCycles(inst.Mode)
	if inst.Mode != IMM && !cpu.Reg.Acc8() {
		cycles++
	}

	cpu.Reg.A = v
	cpu.updateNZ(v)
	return true, cycles, nil
}

// Store accumulator
func (cpu *CPU) sta(inst *Instruction, op Operand) (bool, int, error) {
	err := cpu.store(inst.Mode, op, cpu.Reg.A)
	if err != nil {
		return true, 0, err
	}

	cycles := cpu.accCycles(inst.Mode)
	if !cpu.Reg.Acc8() {
		cycles++
	}
	return true, cycles, nil
}

// Clear carry flag
func (cpu *CPU) clc(inst *Instruction, op Operand) (bool, int, error) {
	cpu.Reg.ClearFlag(Carry)
	return true, 2, nil
}

// Set carry flag
func (cpu *CPU) sec(inst *Instruction, op Operand) (bool, int, error) {
	cpu.Reg.SetFlag(Carry)
	return true, 2, nil
}

// Clear overflow flag
func (cpu *CPU) clv(inst *Instruction, op Operand) (bool, int, error) {
	cpu.Reg.ClearFlag(Overflow)
	return true, 2, nil
}

// Reset processor status bits. Every flag whose bit is set in the operand
// is cleared.
func (cpu *CPU) rep(inst *Instruction, op Operand) (bool, int, error) {
	for f := Flag(0); f < numFlags; f++ {
		if byte(op.Value)&f.Mask() != 0 {
			cpu.Reg.ClearFlag(f)
		}
	}
	return true, 3, nil
}

// Set processor status bits. Every flag whose bit is set in the operand is
// set, so SEP #$20 switches the accumulator to 8 bits.
func (cpu *CPU) sep(inst *Instruction, op Operand) (bool, int, error) {
	for f := Flag(0); f < numFlags; f++ {
		if byte(op.Value)&f.Mask() != 0 {
			cpu.Reg.SetFlag(f)
		}
	}
	return true, 3, nil
}

// No operation
func (cpu *CPU) nop(inst *Instruction, op Operand) (bool, int, error) {
	return true, 2, nil
}

// Reserved for future expansion; acts as a two-byte NOP.
func (cpu *CPU) wdm(inst *Instruction, op Operand) (bool, int, error) {
	return true, 2, nil
}

// Stop the processor
func (cpu *CPU) stp(inst *Instruction, op Operand) (bool, int, error) {
	return false, StopCycles, nil
}
