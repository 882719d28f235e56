// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the Ricoh 5A22 (65816) CPU instruction
// set and emulator.
package cpu

import "fmt"

// CPU represents a single 65816 CPU. It contains a pointer to the
// memory associated with the CPU.
type CPU struct {
	Reg       Registers       // CPU registers
	Mem       Memory          // assigned memory
	Cycles    uint64          // total executed CPU cycles
	LastPC    uint32          // address of the previously executed instruction
	InstSet   *InstructionSet // Instruction set used by the CPU
	halted    bool
	debugger  *Debugger
	storeByte func(cpu *CPU, addr uint32, v byte) error
	storeWord func(cpu *CPU, addr uint32, v uint16) error
}

// StopCycles is the number of cycles charged for the instruction that
// halts the CPU.
const StopCycles = 3

// An Operand holds the data fetched after an opcode. For instructions that
// carry their own bank byte, HasBank is set and Bank holds it.
type Operand struct {
	Value   uint16
	Bank    byte
	HasBank bool
}

// Stages of instruction processing reported by a Fault.
const (
	StageFetch   = "fetch"
	StageOperand = "operand"
	StageExecute = "execute"
)

// A Fault is returned by Step when a memory access fails while an
// instruction is fetched, decoded or executed.
type Fault struct {
	Stage  string // one of the Stage constants
	Addr   uint32 // address of the faulting instruction
	Opcode byte   // opcode, valid unless Stage is StageFetch
	Name   string // instruction name, valid unless Stage is StageFetch
	Err    error  // underlying memory error
}

func (f *Fault) Error() string {
	bank, offset := SplitAddress(f.Addr)
	if f.Stage == StageFetch {
		return fmt.Sprintf("instruction fetch fault at $%02X:%04X: %v", bank, offset, f.Err)
	}
	return fmt.Sprintf("instruction %s fault at $%02X:%04X ($%02X %s): %v",
		f.Stage, bank, offset, f.Opcode, f.Name, f.Err)
}

// Unwrap returns the underlying memory error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// NewCPU creates an emulated 65816 CPU bound to the specified memory.
func NewCPU(m Memory) *CPU {
	cpu := &CPU{
		Mem:       m,
		InstSet:   GetInstructionSet(),
		storeByte: (*CPU).storeByteNormal,
		storeWord: (*CPU).storeWordNormal,
	}

	cpu.Reg.Init()
	return cpu
}

// Reset replaces the register set with one in its reset state and clears
// the cycle counter and halt state.
func (cpu *CPU) Reset() {
	cpu.Reg.Init()
	cpu.Cycles = 0
	cpu.LastPC = 0
	cpu.halted = false
}

// SetPC updates the program bank and program counter.
func (cpu *CPU) SetPC(bank byte, pc uint16) {
	cpu.Reg.PB = bank
	cpu.Reg.PC = pc
}

// PCAddress returns the 24-bit address of the next instruction.
func (cpu *CPU) PCAddress() uint32 {
	return ComposeAddress(cpu.Reg.PB, cpu.Reg.PC)
}

// Halted returns true once the CPU has executed a halting instruction.
func (cpu *CPU) Halted() bool {
	return cpu.halted
}

// Decode returns the instruction whose opcode is stored at the address.
func (cpu *CPU) Decode(addr uint32) (*Instruction, error) {
	opcode, err := cpu.Mem.LoadByte(addr)
	if err != nil {
		return nil, err
	}
	return cpu.InstSet.Lookup(opcode), nil
}

// Load the operand of an instruction located at 'addr'. Operands always
// immediately follow the opcode.
func (cpu *CPU) loadOperand(addr uint32, w Width) (Operand, error) {
	var op Operand
	var err error
	switch w {
	case WidthByte:
		var b byte
		b, err = cpu.Mem.LoadByte(addr + 1)
		op.Value = uint16(b)
	case WidthWord:
		op.Value, err = cpu.Mem.LoadWord(addr + 1)
	case WidthLong:
		op.Value, err = cpu.Mem.LoadWord(addr + 1)
		if err == nil {
			op.Bank, err = cpu.Mem.LoadByte(addr + 3)
			op.HasBank = true
		}
	}
	return op, err
}

// Step the cpu by one instruction. It returns false once the CPU has
// halted, along with the number of cycles consumed by the instruction. A
// memory failure is returned as a *Fault and leaves the registers as they
// were before the step.
func (cpu *CPU) Step() (running bool, cycles int, err error) {
	if cpu.halted {
		return false, 0, nil
	}

	// Grab the next opcode at the current PC
	addr := cpu.PCAddress()
	inst, err := cpu.Decode(addr)
	if err != nil {
		return true, 0, &Fault{Stage: StageFetch, Addr: addr, Err: err}
	}

	// The operand width is fixed by the accumulator size in effect before
	// the instruction executes. The PC advances by the same amount even if
	// the instruction changes the accumulator size.
	acc8 := cpu.Reg.Acc8()
	op, err := cpu.loadOperand(addr, inst.Width.Resolve(acc8))
	if err != nil {
		return true, 0, cpu.fault(StageOperand, addr, inst, err)
	}

	// A faulting instruction leaves the registers untouched.
	saved := cpu.Reg
	running, cycles, err = inst.fn(cpu, inst, op)
	if err != nil {
		cpu.Reg = saved
		return true, 0, cpu.fault(StageExecute, addr, inst, err)
	}

	cpu.LastPC = addr
	if !running {
		cpu.halted = true
		cpu.Cycles += uint64(cycles)
		return false, cycles, nil
	}

	cpu.Reg.PC += uint16(inst.Length(acc8))
	cpu.Cycles += uint64(cycles)

	// Update the debugger so it can handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.PCAddress())
	}
	return true, cycles, nil
}

func (cpu *CPU) fault(stage string, addr uint32, inst *Instruction, err error) *Fault {
	return &Fault{Stage: stage, Addr: addr, Opcode: inst.Opcode, Name: inst.Name, Err: err}
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a byte
// to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
	cpu.storeWord = (*CPU).storeWordDebugger
}

// DetachDebugger detaches the currently debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
	cpu.storeWord = (*CPU).storeWordNormal
}

// Return the address referenced by an absolute or absolute long operand.
func (cpu *CPU) dataAddress(op Operand) uint32 {
	bank := cpu.Reg.DB
	if op.HasBank {
		bank = op.Bank
	}
	return ComposeAddress(bank, op.Value)
}

// Load an accumulator-sized value using the requested addressing mode.
func (cpu *CPU) load(mode Mode, op Operand) (uint16, error) {
	switch mode {
	case IMM:
		if cpu.Reg.Acc8() {
			return op.Value & 0xff, nil
		}
		return op.Value, nil
	case ABS, ABL:
		addr := cpu.dataAddress(op)
		if cpu.Reg.Acc8() {
			v, err := cpu.Mem.LoadByte(addr)
			return uint16(v), err
		}
		return cpu.Mem.LoadWord(addr)
	default:
		panic("Invalid addressing mode")
	}
}

// Store an accumulator-sized value using the requested addressing mode.
func (cpu *CPU) store(mode Mode, op Operand, v uint16) error {
	switch mode {
	case ABS, ABL:
		addr := cpu.dataAddress(op)
		if cpu.Reg.Acc8() {
			return cpu.storeByte(cpu, addr, byte(v))
		}
		return cpu.storeWord(cpu, addr, v)
	default:
		panic("Invalid addressing mode")
	}
}

func (cpu *CPU) storeByteNormal(addr uint32, v byte) error {
	return cpu.Mem.StoreByte(addr, v)
}

func (cpu *CPU) storeByteDebugger(addr uint32, v byte) error {
	if err := cpu.Mem.StoreByte(addr, v); err != nil {
		return err
	}
	cpu.debugger.onDataStore(cpu, addr, v)
	return nil
}

func (cpu *CPU) storeWordNormal(addr uint32, v uint16) error {
	return cpu.Mem.StoreWord(addr, v)
}

func (cpu *CPU) storeWordDebugger(addr uint32, v uint16) error {
	if err := cpu.Mem.StoreWord(addr, v); err != nil {
		return err
	}
	cpu.debugger.onDataStore(cpu, addr, byte(v))
	cpu.debugger.onDataStore(cpu, addr+1, byte(v>>8))
	return nil
}

// Update the Zero and Negative flags from an accumulator-sized value.
func (cpu *CPU) updateNZ(v uint16) {
	cpu.Reg.SetFlagTo(Zero, v == 0)
	if cpu.Reg.Acc8() {
		cpu.Reg.SetFlagTo(Negative, v&0x80 != 0)
	} else {
		cpu.Reg.SetFlagTo(Negative, v&0x8000 != 0)
	}
}
