// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/beevik/go65816/host"
	"github.com/beevik/go65816/rom"
	"github.com/beevik/go65816/vm"
	"github.com/beevik/term"
	"github.com/pkg/profile"
)

var (
	romFile    string
	runNow     bool
	trace      bool
	pace       bool
	profileDir string
)

func init() {
	flag.StringVar(&romFile, "rom", "", "cartridge ROM image to load")
	flag.BoolVar(&runNow, "run", false, "run the ROM until the CPU halts, without the monitor")
	flag.BoolVar(&trace, "trace", false, "log every instruction when running with -run")
	flag.BoolVar(&pace, "pace", false, "run at the 5A22 clock rate when running with -run")
	flag.StringVar(&profileDir, "profile", "", "write a CPU profile to this directory")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: go65816 [options] [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	log.SetPrefix("go65816: ")

	if runNow {
		if err := runHeadless(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(profileDir), profile.NoShutdownHook).Stop()
	}

	h := host.New()
	if romFile != "" {
		if err := h.LoadROM(romFile); err != nil {
			exitOnError(err)
		}
	}

	// Run commands contained in command-line files.
	for _, filename := range flag.Args() {
		file, err := os.Open(filename)
		if err != nil {
			exitOnError(err)
		}
		err = h.RunCommands(file, os.Stdout, false)
		file.Close()
		if errors.Is(err, host.ErrQuit) {
			return
		}
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// Run commands interactively.
	h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}

// Run the cartridge to completion without the monitor.
func runHeadless() error {
	if romFile == "" {
		return errors.New("-run requires -rom")
	}

	if profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(profileDir), profile.NoShutdownHook).Stop()
	}

	cart, err := rom.Load(romFile)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, log.Prefix(), log.LstdFlags)
	m, err := vm.New(cart, vm.WithLogger(logger), vm.WithTrace(trace), vm.WithPacing(pace))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := m.Run(ctx)
	logger.Printf("%d instructions, %d cycles, %v emulated", res.Steps, res.Cycles, m.Clock.Elapsed())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
