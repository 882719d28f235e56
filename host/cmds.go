// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"
)

// A command describes a single monitor command. A pointer to it is stored
// as the Data of the matching entry in the command tree.
type command struct {
	name        string
	brief       string
	description string
	usage       string
	fn          func(h *Host, c cmd.Selection) error
}

// A commandGroup is a named subtree of commands.
type commandGroup struct {
	name     string
	brief    string
	commands []*command
}

var (
	cmds         *cmd.Tree
	rootCommands []*command
	subtrees     []*commandGroup
	groupMap     = prefixtree.New[*commandGroup]()
)

func init() {
	rootCommands = []*command{
		{
			name:        "help",
			brief:       "Display help for a command",
			description: "Display help for a command.",
			usage:       "help [<command>]",
			fn:          (*Host).cmdHelp,
		},
		{
			name:  "disassemble",
			brief: "Disassemble code",
			description: "Disassemble machine code starting at the requested" +
				" address. The number of instruction lines to disassemble may be" +
				" specified as an option. If no address is specified, the" +
				" disassembly continues from where the last disassembly left off." +
				" Variable-width operands are decoded using the current" +
				" accumulator size.",
			usage: "disassemble [<address>] [<lines>]",
			fn:    (*Host).cmdDisassemble,
		},
		{
			name:  "load",
			brief: "Load a ROM image or binary file",
			description: "Load a cartridge ROM image into the emulated" +
				" system's memory and reset the CPU. If an address is given, the" +
				" file is treated as raw binary data and copied to that address" +
				" instead.",
			usage: "load <filename> [<address>]",
			fn:    (*Host).cmdLoad,
		},
		{
			name:        "quit",
			brief:       "Quit the program",
			description: "Quit the program.",
			usage:       "quit",
			fn:          (*Host).cmdQuit,
		},
		{
			name:  "register",
			brief: "View or change register values",
			description: "When used without arguments, this command displays the current" +
				" contents of the CPU registers. When used with arguments, this" +
				" command changes the value of a register or one of the CPU's status" +
				" flags. Allowed register names include A, X, Y, SP, D, DB, PB, PC" +
				" and PS. Allowed status flag names include Carry, Zero," +
				" IRQDisable, Decimal, IndexSize, AccSize, Overflow and Negative.",
			usage: "register [<name> <value>]",
			fn:    (*Host).cmdRegister,
		},
		{
			name:        "reset",
			brief:       "Reset the CPU",
			description: "Reset the CPU registers to their power-on state.",
			usage:       "reset",
			fn:          (*Host).cmdReset,
		},
		{
			name:  "run",
			brief: "Run the CPU",
			description: "Run the CPU until it halts, a breakpoint is hit or" +
				" the user types Ctrl-C. An optional start address may be given.",
			usage: "run [<address>]",
			fn:    (*Host).cmdRun,
		},
		{
			name:  "set",
			brief: "Set a configuration variable",
			description: "Set the value of a configuration variable. To see the" +
				" current values of all configuration variables, type set" +
				" without any arguments.",
			usage: "set [<var> <value>]",
			fn:    (*Host).cmdSet,
		},
		{
			name:  "step",
			brief: "Step the CPU",
			description: "Step the CPU by a single instruction. The number of" +
				" steps may be specified as an option.",
			usage: "step [<count>]",
			fn:    (*Host).cmdStep,
		},
	}

	subtrees = []*commandGroup{
		{
			name:  "breakpoint",
			brief: "Breakpoint commands",
			commands: []*command{
				{
					name:        "list",
					brief:       "List breakpoints",
					description: "List all current breakpoints.",
					usage:       "breakpoint list",
					fn:          (*Host).cmdBreakpointList,
				},
				{
					name:  "add",
					brief: "Add a breakpoint",
					description: "Add a breakpoint at the specified address." +
						" The breakpoint starts enabled.",
					usage: "breakpoint add <address>",
					fn:    (*Host).cmdBreakpointAdd,
				},
				{
					name:        "remove",
					brief:       "Remove a breakpoint",
					description: "Remove a breakpoint at the specified address.",
					usage:       "breakpoint remove <address>",
					fn:          (*Host).cmdBreakpointRemove,
				},
				{
					name:        "enable",
					brief:       "Enable a breakpoint",
					description: "Enable a previously added breakpoint.",
					usage:       "breakpoint enable <address>",
					fn:          (*Host).cmdBreakpointEnable,
				},
				{
					name:  "disable",
					brief: "Disable a breakpoint",
					description: "Disable a previously added breakpoint. This" +
						" prevents the breakpoint from being hit when running the" +
						" CPU.",
					usage: "breakpoint disable <address>",
					fn:    (*Host).cmdBreakpointDisable,
				},
			},
		},
		{
			name:  "databreakpoint",
			brief: "Data breakpoint commands",
			commands: []*command{
				{
					name:        "list",
					brief:       "List data breakpoints",
					description: "List all current data breakpoints.",
					usage:       "databreakpoint list",
					fn:          (*Host).cmdDataBreakpointList,
				},
				{
					name:  "add",
					brief: "Add a data breakpoint",
					description: "Add a new data breakpoint at the specified" +
						" memory address. When the CPU stores data at this address," +
						" the breakpoint will stop the CPU. Optionally, a byte" +
						" value may be specified, and the CPU will stop only" +
						" when this value is stored.",
					usage: "databreakpoint add <address> [<value>]",
					fn:    (*Host).cmdDataBreakpointAdd,
				},
				{
					name:  "remove",
					brief: "Remove a data breakpoint",
					description: "Remove a previously added data breakpoint at" +
						" the specified memory address.",
					usage: "databreakpoint remove <address>",
					fn:    (*Host).cmdDataBreakpointRemove,
				},
				{
					name:        "enable",
					brief:       "Enable a data breakpoint",
					description: "Enable a previously added data breakpoint.",
					usage:       "databreakpoint enable <address>",
					fn:          (*Host).cmdDataBreakpointEnable,
				},
				{
					name:        "disable",
					brief:       "Disable a data breakpoint",
					description: "Disable a previously added data breakpoint.",
					usage:       "databreakpoint disable <address>",
					fn:          (*Host).cmdDataBreakpointDisable,
				},
			},
		},
		{
			name:  "memory",
			brief: "Memory commands",
			commands: []*command{
				{
					name:  "dump",
					brief: "Dump memory at address",
					description: "Dump the contents of memory starting from the" +
						" specified address. The number of bytes to dump may be" +
						" specified as an option. If no address is specified, the" +
						" memory dump continues from where the last dump left off.",
					usage: "memory dump [<address>] [<bytes>]",
					fn:    (*Host).cmdMemoryDump,
				},
				{
					name:  "set",
					brief: "Set memory at address",
					description: "Set the contents of memory starting from the" +
						" specified address. The values to assign should be a" +
						" series of space-separated byte values.",
					usage: "memory set <address> <byte> [<byte> ...]",
					fn:    (*Host).cmdMemorySet,
				},
			},
		},
	}

	root := cmd.NewTree(cmd.TreeDescriptor{Name: "go65816"})
	for _, c := range rootCommands {
		root.AddCommand(descriptor(c))
	}

	for _, g := range subtrees {
		t := root.AddSubtree(cmd.TreeDescriptor{Name: g.name, Brief: g.brief})
		for _, c := range g.commands {
			t.AddCommand(descriptor(c))
		}
		groupMap.Add(g.name, g)
	}

	// Add command shortcuts.
	root.AddShortcut("b", "breakpoint")
	root.AddShortcut("bp", "breakpoint")
	root.AddShortcut("ba", "breakpoint add")
	root.AddShortcut("br", "breakpoint remove")
	root.AddShortcut("bl", "breakpoint list")
	root.AddShortcut("be", "breakpoint enable")
	root.AddShortcut("bd", "breakpoint disable")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("db", "databreakpoint")
	root.AddShortcut("dbp", "databreakpoint")
	root.AddShortcut("dbl", "databreakpoint list")
	root.AddShortcut("dba", "databreakpoint add")
	root.AddShortcut("dbr", "databreakpoint remove")
	root.AddShortcut("dbe", "databreakpoint enable")
	root.AddShortcut("dbd", "databreakpoint disable")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("r", "register")
	root.AddShortcut("s", "step")
	root.AddShortcut("?", "help")
	root.AddShortcut(".", "register")

	cmds = root
}

func descriptor(c *command) cmd.CommandDescriptor {
	return cmd.CommandDescriptor{
		Name:        c.name,
		Brief:       c.brief,
		Description: c.description,
		Usage:       c.usage,
		Data:        c,
	}
}

// Look up a command group by a unique prefix of its name.
func findGroup(name string) *commandGroup {
	g, err := groupMap.FindValue(strings.ToLower(name))
	if err != nil {
		return nil
	}
	return g
}
