// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vm ties a 65816 CPU, its memory and a cartridge together and
// drives the CPU with a clock loop.
package vm

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/beevik/go65816/cpu"
	"github.com/beevik/go65816/disasm"
	"github.com/beevik/go65816/rom"
)

// CPUClockHz is the 5A22 clock rate: the 21.477 MHz master clock divided
// by six.
const CPUClockHz = 3579545

// Number of cycles run between pacing checks, about one video frame.
const paceCycles = CPUClockHz / 60

// Steps between context cancellation checks.
const cancelCheckSteps = 1024

// A Clock keeps track of the cycles consumed by the CPU.
type Clock struct {
	Pending uint64 // cycles run since the last pacing check
	Total   uint64 // cycles run since the machine was created
	Hz      uint64 // clock rate used for pacing
}

// Tick adds cycles to the clock.
func (c *Clock) Tick(cycles int) {
	c.Pending += uint64(cycles)
	c.Total += uint64(cycles)
}

// Elapsed returns the emulated time represented by the total cycle count.
func (c *Clock) Elapsed() time.Duration {
	if c.Hz == 0 {
		return 0
	}
	return cyclesToDuration(c.Total, c.Hz)
}

func cyclesToDuration(cycles, hz uint64) time.Duration {
	return time.Duration(float64(cycles) / float64(hz) * float64(time.Second))
}

// A VirtualMachine owns a CPU, its memory and an optional cartridge.
type VirtualMachine struct {
	CPU   *cpu.CPU
	Mem   cpu.Memory
	Cart  *rom.Cartridge
	Clock Clock

	logger *log.Logger
	trace  bool
	pace   bool
	start  time.Time
}

// An Option configures a VirtualMachine.
type Option func(vm *VirtualMachine)

// WithLogger sets the logger used for trace and fault output.
func WithLogger(l *log.Logger) Option {
	return func(vm *VirtualMachine) {
		vm.logger = l
	}
}

// WithTrace logs a disassembly line for every executed instruction.
func WithTrace(on bool) Option {
	return func(vm *VirtualMachine) {
		vm.trace = on
	}
}

// WithPacing makes Run sleep so execution matches the CPU clock rate.
func WithPacing(on bool) Option {
	return func(vm *VirtualMachine) {
		vm.pace = on
	}
}

// Result summarizes a call to Run.
type Result struct {
	Halted bool   // the CPU executed a halting instruction
	Steps  uint64 // instructions executed
	Cycles uint64 // cycles consumed
}

// New creates a virtual machine with a full 16 MiB address space and the
// cartridge mapped into it. The CPU starts at the reset vector.
func New(cart *rom.Cartridge, opts ...Option) (*VirtualMachine, error) {
	mem := cpu.NewFlatMemory(cpu.AddressSpace)
	if err := cart.Map(mem); err != nil {
		return nil, err
	}
	vm := NewWithMemory(mem, opts...)
	vm.Cart = cart
	vm.logger.Printf("loaded %q (%v, %d KiB)", cart.Header.Title, cart.Mapping, len(cart.ROM)/1024)
	return vm, nil
}

// NewWithMemory creates a virtual machine around an existing memory image.
func NewWithMemory(mem cpu.Memory, opts ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		CPU:    cpu.NewCPU(mem),
		Mem:    mem,
		Clock:  Clock{Hz: CPUClockHz},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Reset resets the CPU and the clock.
func (vm *VirtualMachine) Reset() {
	vm.CPU.Reset()
	vm.Clock = Clock{Hz: vm.Clock.Hz}
}

// Step executes a single instruction. It returns false once the CPU has
// halted.
func (vm *VirtualMachine) Step() (running bool, err error) {
	if vm.trace {
		vm.traceInstruction()
	}

	running, cycles, err := vm.CPU.Step()
	if err != nil {
		vm.logger.Printf("fault: %v", err)
		vm.logger.Printf("registers: %s", disasm.GetRegisterString(&vm.CPU.Reg))
		return running, err
	}

	vm.Clock.Tick(cycles)
	if !running {
		bank, offset := cpu.SplitAddress(vm.CPU.LastPC)
		vm.logger.Printf("halted at $%02X:%04X after %d cycles", bank, offset, vm.Clock.Total)
	}
	return running, nil
}

func (vm *VirtualMachine) traceInstruction() {
	addr := vm.CPU.PCAddress()
	line, _, err := disasm.Disassemble(vm.CPU, addr)
	if err != nil {
		return
	}
	bank, offset := cpu.SplitAddress(addr)
	vm.logger.Printf("%02X:%04X  %-12s %s", bank, offset, line, disasm.GetRegisterString(&vm.CPU.Reg))
}

// Run executes instructions until the CPU halts, a fault occurs or the
// context is cancelled.
func (vm *VirtualMachine) Run(ctx context.Context) (Result, error) {
	var res Result
	startCycles := vm.Clock.Total
	vm.start = time.Now()
	vm.Clock.Pending = 0

	for {
		if res.Steps%cancelCheckSteps == 0 {
			if err := ctx.Err(); err != nil {
				res.Cycles = vm.Clock.Total - startCycles
				return res, err
			}
		}

		running, err := vm.Step()
		if err != nil {
			res.Cycles = vm.Clock.Total - startCycles
			return res, err
		}
		res.Steps++

		if !running {
			res.Halted = true
			res.Cycles = vm.Clock.Total - startCycles
			return res, nil
		}

		if vm.pace && vm.Clock.Pending >= paceCycles {
			if err := vm.wait(ctx, vm.Clock.Total-startCycles); err != nil {
				res.Cycles = vm.Clock.Total - startCycles
				return res, err
			}
		}
	}
}

// Sleep until wall-clock time catches up with the emulated time of the
// cycles run so far.
func (vm *VirtualMachine) wait(ctx context.Context, cycles uint64) error {
	vm.Clock.Pending = 0
	emulated := cyclesToDuration(cycles, vm.Clock.Hz)
	toWait := emulated - time.Since(vm.start)
	if toWait <= 0 {
		return nil
	}

	timer := time.NewTimer(toWait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
