// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements an interactive monitor for the emulated 65816
// system. It loads cartridges, runs and steps the CPU, and manages
// breakpoints.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/go65816/cpu"
	"github.com/beevik/go65816/disasm"
	"github.com/beevik/go65816/rom"
	"github.com/beevik/go65816/vm"
	"github.com/beevik/prefixtree/v2"
)

// ErrQuit is returned by RunCommands when the quit command is executed.
var ErrQuit = errors.New("exiting program")

type state int32

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
)

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displayCycles

	displayAll = displayRegisters | displayCycles
)

var flagTree = prefixtree.New[cpu.Flag]()

func init() {
	for f := cpu.Carry; f <= cpu.Negative; f++ {
		flagTree.Add(strings.ToLower(f.String()), f)
	}
}

// A Host represents a fully emulated 65816 system with a 16MB address
// space, a built-in debugger and a cartridge loader.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	vm          *vm.VirtualMachine
	mem         *cpu.FlatMemory
	debugger    *cpu.Debugger
	lastCmd     *cmd.Selection
	state       atomic.Int32
	settings    *settings
}

// New creates a new 65816 host environment.
func New() *Host {
	h := &Host{
		settings: newSettings(),
		output:   bufio.NewWriter(os.Stdout),
	}

	// Create a CPU debugger. It stays attached to whichever virtual
	// machine the host is currently running.
	h.debugger = cpu.NewDebugger(newDebugHandler(h))
	h.setVM(vm.NewWithMemory(cpu.NewFlatMemory(cpu.AddressSpace)))
	return h
}

func (h *Host) setVM(m *vm.VirtualMachine) {
	h.vm = m
	h.mem = m.Mem.(*cpu.FlatMemory)
	h.vm.CPU.AttachDebugger(h.debugger)
	h.settings.NextDisasmAddr = 0
	h.settings.NextMemDumpAddr = 0
}

func (h *Host) getState() state {
	return state(h.state.Load())
}

func (h *Host) setState(s state) {
	h.state.Store(int32(s))
}

// LoadROM loads a cartridge image and resets the CPU.
func (h *Host) LoadROM(filename string) error {
	cart, err := rom.Load(filename)
	if err != nil {
		return err
	}
	m, err := vm.New(cart)
	if err != nil {
		return err
	}
	h.setVM(m)

	checksum := "OK"
	if !cart.ChecksumValid() {
		checksum = "mismatch"
	}
	h.printf("Loaded '%s' (%v, %d KiB, checksum %s).\n",
		cart.Header.Title, cart.Mapping, len(cart.ROM)/1024, checksum)
	return nil
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered. ErrQuit is
// returned if the commands asked the program to exit.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) error {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println()
	}

	h.displayPC()

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			return nil
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			if g := findGroup(firstWord(line)); g != nil {
				h.displayGroup(g)
			}
			continue
		}

		info, ok := c.Command.Data.(*command)
		if !ok {
			continue
		}
		h.lastCmd = &c

		if err := info.fn(h, c); err != nil {
			return err
		}
	}
}

// Break interrupts a running CPU.
func (h *Host) Break() {
	if h.getState() == stateRunning {
		h.setState(stateProcessingCommands)
		return
	}
	h.println()
	h.prompt()
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return strings.TrimSpace(h.input.Text()), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) displayPC() {
	if h.interactive {
		d, _ := h.disassemble(h.vm.CPU.PCAddress(), displayAll)
		h.println(d)
	}
}

func (h *Host) parseAddress(s string) (uint32, error) {
	if s == "." {
		return h.vm.CPU.PCAddress(), nil
	}
	return parseAddress(s, h.settings.HexMode)
}

func (h *Host) parseNumber(s string) (uint32, error) {
	return parseNumber(s, h.settings.HexMode)
}

func (h *Host) cmdBreakpointList(c cmd.Selection) error {
	h.println("Addr     Enabled")
	h.println("-------- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("%s %v\n", formatAddress(b.Address), !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at %s.\n", formatAddress(addr))
	return nil
}

func (h *Host) cmdBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on %s.\n", formatAddress(addr))
		return nil
	}

	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at %s removed.\n", formatAddress(addr))
	return nil
}

func (h *Host) cmdBreakpointEnable(c cmd.Selection) error {
	return h.enableBreakpoint(c, true)
}

func (h *Host) cmdBreakpointDisable(c cmd.Selection) error {
	return h.enableBreakpoint(c, false)
}

func (h *Host) enableBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on %s.\n", formatAddress(addr))
		return nil
	}

	b.Disabled = !enable
	h.printf("Breakpoint at %s %s.\n", formatAddress(addr), enabledString(enable))
	return nil
}

func (h *Host) cmdDataBreakpointList(c cmd.Selection) error {
	h.println("Addr     Enabled  Value")
	h.println("-------- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("%s %-5v    $%02X\n", formatAddress(b.Address), !b.Disabled, b.Value)
		} else {
			h.printf("%s %-5v    <none>\n", formatAddress(b.Address), !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if len(c.Args) > 1 {
		value, err := h.parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		h.printf("Conditional data breakpoint added at %s for value $%02X.\n", formatAddress(addr), byte(value))
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at %s.\n", formatAddress(addr))
	}

	return nil
}

func (h *Host) cmdDataBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on %s.\n", formatAddress(addr))
		return nil
	}

	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at %s removed.\n", formatAddress(addr))
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, true)
}

func (h *Host) cmdDataBreakpointDisable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, false)
}

func (h *Host) enableDataBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on %s.\n", formatAddress(addr))
		return nil
	}

	b.Disabled = !enable
	h.printf("Data breakpoint at %s %s.\n", formatAddress(addr), enabledString(enable))
	return nil
}

// Parse the first argument of a command as an address. If it is missing
// or invalid, a message is displayed and false is returned.
func (h *Host) addressArg(c cmd.Selection) (uint32, bool) {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return 0, false
	}

	addr, err := h.parseAddress(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint32
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextDisasmAddr
		if addr == 0 {
			addr = h.vm.CPU.PCAddress()
		}

	default:
		a, err := h.parseAddress(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := h.parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr, 0)
		h.println(d)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.displayCommands()
		return nil
	}

	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	if err == nil && s.Command != nil {
		if info, ok := s.Command.Data.(*command); ok {
			h.printf("Syntax: %s\n\n", info.usage)
			h.printf("Description:\n%s\n\n", indentWrap(3, info.description))
			return nil
		}
	}

	if g := findGroup(c.Args[0]); g != nil && len(c.Args) == 1 {
		h.displayGroup(g)
		return nil
	}

	if err == nil {
		err = cmd.ErrNotFound
	}
	h.printf("%v\n", err)
	return nil
}

func (h *Host) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	filename := c.Args[0]
	if len(c.Args) < 2 {
		if err := h.LoadROM(filename); err != nil {
			h.printf("Failed to load '%s': %v\n", filename, err)
			return nil
		}
		h.displayPC()
		return nil
	}

	addr, err := h.parseAddress(c.Args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b, err := os.ReadFile(filename)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filename, err)
		return nil
	}
	if err := h.mem.StoreBytes(addr, b); err != nil {
		h.printf("Failed to load '%s': %v\n", filename, err)
		return nil
	}

	h.printf("Loaded '%s' to %s..%s.\n", filename, formatAddress(addr), formatAddress(addr+uint32(len(b))-1))
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint32
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextMemDumpAddr
		if addr == 0 {
			addr = h.vm.CPU.PCAddress()
		}

	default:
		a, err := h.parseAddress(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	bytes := h.settings.MemDumpBytes
	if len(c.Args) >= 2 {
		n, err := h.parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bytes = int(n)
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + uint32(bytes)
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayHelpText(c)
		return nil
	}

	addr, err := h.parseAddress(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.Args)-1)
	for _, s := range c.Args[1:] {
		v, err := parseNumber(s, true)
		if err != nil || v > 0xff {
			h.printf("Invalid byte value '%s'.\n", s)
			return nil
		}
		b = append(b, byte(v))
	}

	if err := h.mem.StoreBytes(addr, b); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Stored %d byte(s) at %s.\n", len(b), formatAddress(addr))
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return ErrQuit
}

func (h *Host) cmdRegister(c cmd.Selection) error {
	if len(c.Args) == 0 {
		d, _ := h.disassemble(h.vm.CPU.PCAddress(), displayAll)
		h.println(d)
		return nil
	}
	if len(c.Args) < 2 {
		h.displayHelpText(c)
		return nil
	}

	key := strings.ToLower(c.Args[0])
	v, err := h.parseNumber(c.Args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	r := &h.vm.CPU.Reg
	switch key {
	case "a":
		r.A = uint16(v)
		if r.GetFlag(cpu.AccSize) {
			r.A &= 0xff
		}
		h.printf("Register A set to $%04X.\n", r.A)
	case "x", "y":
		reg := &r.X
		if key == "y" {
			reg = &r.Y
		}
		*reg = uint16(v)
		if r.GetFlag(cpu.IndexSize) {
			*reg &= 0xff
		}
		h.printf("Register %s set to $%04X.\n", strings.ToUpper(key), *reg)
	case "sp":
		r.SP = uint16(v)
		h.printf("Register SP set to $%04X.\n", r.SP)
	case "d":
		r.D = uint16(v)
		h.printf("Register D set to $%04X.\n", r.D)
	case "pc":
		r.PC = uint16(v)
		h.printf("Register PC set to $%04X.\n", r.PC)
	case "db":
		r.DB = byte(v)
		h.printf("Register DB set to $%02X.\n", r.DB)
	case "pb":
		r.PB = byte(v)
		h.printf("Register PB set to $%02X.\n", r.PB)
	case "ps":
		r.RestorePS(byte(v))
		h.printf("Register PS set to [%s].\n", r.PS)
	default:
		f, err := flagTree.FindValue(key)
		if err != nil {
			h.printf("Register '%s' not found.\n", c.Args[0])
			return nil
		}
		r.SetFlagTo(f, v != 0)
		h.printf("Flag %v set to %v.\n", f, v != 0)
	}

	h.settings.NextDisasmAddr = 0
	return nil
}

func (h *Host) cmdReset(c cmd.Selection) error {
	h.vm.Reset()
	h.settings.NextDisasmAddr = 0
	h.println("CPU reset.")
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c cmd.Selection) error {
	if len(c.Args) > 0 {
		addr, err := h.parseAddress(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bank, offset := cpu.SplitAddress(addr)
		h.vm.CPU.SetPC(bank, offset)
	}

	h.printf("Running from %s. Press ctrl-C to break.\n", formatAddress(h.vm.CPU.PCAddress()))

	h.setState(stateRunning)
	for h.getState() == stateRunning {
		h.step()
	}
	h.setState(stateProcessingCommands)

	h.settings.NextDisasmAddr = h.vm.CPU.PCAddress()
	h.displayPC()
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayHelpText(c)

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("Setting '%s' not found", key)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		case reflect.Uint32:
			var v uint32
			v, err = h.parseAddress(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v uint32
			v, err = h.parseNumber(value)
			if err == nil {
				err = h.settings.Set(key, int(v))
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}
	}

	return nil
}

func (h *Host) cmdStep(c cmd.Selection) error {
	// Parse the number of steps.
	count := 1
	if len(c.Args) > 0 {
		n, err := h.parseNumber(c.Args[0])
		if err == nil {
			count = int(n)
		}
	}

	// Step the CPU count times.
	h.setState(stateRunning)
	for i := count - 1; i >= 0 && h.getState() == stateRunning; i-- {
		h.step()
		switch {
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines:
			h.displayPC()
		}
	}
	h.setState(stateProcessingCommands)

	h.settings.NextDisasmAddr = h.vm.CPU.PCAddress()
	return nil
}

func (h *Host) step() {
	if h.settings.Trace {
		d, _ := h.disassemble(h.vm.CPU.PCAddress(), displayRegisters)
		h.println(d)
	}

	running, err := h.vm.Step()
	switch {
	case err != nil:
		h.printf("%v\n", err)
		h.setState(stateProcessingCommands)
	case !running:
		h.printf("CPU halted at %s after %d cycles.\n", formatAddress(h.vm.CPU.LastPC), h.vm.CPU.Cycles)
		h.setState(stateProcessingCommands)
	}
}

func (h *Host) disassemble(addr uint32, flags displayFlags) (str string, next uint32) {
	c := h.vm.CPU

	line, next, err := disasm.Disassemble(c, addr)
	if err != nil {
		return fmt.Sprintf("%02X:%04X-   %v", byte(addr>>16), uint16(addr), err), addr + 1
	}

	bank, offset := cpu.SplitAddress(addr)
	l := uint16(next) - offset
	b := make([]byte, l)
	for i := range b {
		b[i], _ = c.Mem.LoadByte(cpu.ComposeAddress(bank, offset+uint16(i)))
	}

	str = fmt.Sprintf("%02X:%04X-   %-11s    %-15s", bank, offset, codeString(b), line)

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.GetRegisterString(&c.Reg)
	}

	if (flags & displayCycles) != 0 {
		str += fmt.Sprintf(" C=%-12d", c.Cycles)
	}

	return str, next
}

func (h *Host) dumpMemory(addr0 uint32, bytes int) {
	const perLine = 16

	for addr := addr0; bytes > 0; {
		n := min(perLine, bytes)
		buf := []byte(strings.Repeat(" ", perLine*3+1+perLine))

		for i := 0; i < n; i++ {
			v, err := h.mem.LoadByte(addr + uint32(i))
			if err != nil {
				h.printf("%v\n", err)
				return
			}
			byteToBuf(v, buf[i*3:i*3+2])
			buf[perLine*3+1+i] = toPrintableChar(v)
		}

		h.printf("%02X:%04X-  %s\n", byte(addr>>16), uint16(addr), strings.TrimRight(string(buf), " "))
		addr += uint32(n)
		bytes -= n
	}
}

func (h *Host) displayHelpText(c cmd.Selection) {
	if info, ok := c.Command.Data.(*command); ok && info.usage != "" {
		h.printf("Syntax: %s\n", info.usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) displayCommands() {
	h.println("go65816 commands:")
	for _, c := range rootCommands {
		h.printf("    %-15s  %s\n", c.name, c.brief)
	}
	for _, g := range subtrees {
		h.printf("    %-15s  %s\n", g.name, g.brief)
	}
}

func (h *Host) displayGroup(g *commandGroup) {
	h.printf("%s:\n", g.brief)
	for _, c := range g.commands {
		h.printf("    %-15s  %s\n", c.name, c.brief)
	}
}

func (h *Host) onBreakpoint(cpu *cpu.CPU, b *cpu.Breakpoint) {
	h.setState(stateBreakpoint)
	h.printf("Breakpoint hit at %s.\n", formatAddress(b.Address))
}

func (h *Host) onDataBreakpoint(cpu *cpu.CPU, b *cpu.DataBreakpoint) {
	h.setState(stateBreakpoint)
	h.printf("Data breakpoint hit on address %s.\n", formatAddress(b.Address))
}

func enabledString(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
