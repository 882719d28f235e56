// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rom loads SNES cartridge images and maps them into the 65816
// address space.
package rom

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/go65816/cpu"
)

// Errors
var (
	ErrTooSmall = errors.New("rom image too small")
	ErrNoHeader = errors.New("no cartridge header found")
)

// Mapping identifies how the cartridge ROM is wired into the address space.
type Mapping byte

// Supported mappings
const (
	LoROM Mapping = iota
	HiROM
)

func (m Mapping) String() string {
	switch m {
	case LoROM:
		return "LoROM"
	case HiROM:
		return "HiROM"
	default:
		return "unknown"
	}
}

const (
	copierHeaderSize = 512
	minSize          = 0x8000

	loROMHeader = 0x7fc0
	hiROMHeader = 0xffc0
	headerSize  = 0x40
	titleSize   = 21
)

// Header holds the internal cartridge header.
type Header struct {
	Title       string
	MapMode     byte
	CartType    byte
	ROMSize     byte // log2 of the ROM size in KiB
	SRAMSize    byte // log2 of the SRAM size in KiB
	Region      byte
	Version     byte
	Complement  uint16
	Checksum    uint16
	ResetVector uint16 // emulation-mode reset vector
}

// A Cartridge is a parsed ROM image.
type Cartridge struct {
	Header  Header
	Mapping Mapping
	ROM     []byte
}

// Load reads and parses the ROM image stored in a file.
func Load(filename string) (*Cartridge, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cart, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cart, nil
}

// Parse parses a ROM image. A 512-byte copier header is stripped if
// present, and the LoROM and HiROM header locations are scored to decide
// which mapping the cartridge uses.
func Parse(b []byte) (*Cartridge, error) {
	if len(b)%1024 == copierHeaderSize {
		b = b[copierHeaderSize:]
	}
	if len(b) < minSize {
		return nil, ErrTooSmall
	}

	lo := scoreHeader(b, loROMHeader, LoROM)
	hi := scoreHeader(b, hiROMHeader, HiROM)
	if lo <= 0 && hi <= 0 {
		return nil, ErrNoHeader
	}

	cart := &Cartridge{ROM: b, Mapping: LoROM}
	offset := loROMHeader
	if hi > lo {
		cart.Mapping = HiROM
		offset = hiROMHeader
	}
	cart.Header = parseHeader(b[offset : offset+headerSize])
	return cart, nil
}

func parseHeader(h []byte) Header {
	return Header{
		Title:       strings.TrimRight(string(h[:titleSize]), " \x00"),
		MapMode:     h[0x15],
		CartType:    h[0x16],
		ROMSize:     h[0x17],
		SRAMSize:    h[0x18],
		Region:      h[0x19],
		Version:     h[0x1b],
		Complement:  uint16(h[0x1c]) | uint16(h[0x1d])<<8,
		Checksum:    uint16(h[0x1e]) | uint16(h[0x1f])<<8,
		ResetVector: uint16(h[0x3c]) | uint16(h[0x3d])<<8,
	}
}

// Score a candidate header location. Higher scores are more likely to be
// the real header; a score of zero or less means no plausible header.
func scoreHeader(b []byte, offset int, mapping Mapping) int {
	if offset+headerSize > len(b) {
		return 0
	}
	h := parseHeader(b[offset : offset+headerSize])

	score := 0
	if h.Checksum+h.Complement == 0xffff {
		score += 4
	}
	if h.MapMode&0xe0 == 0x20 && Mapping(h.MapMode&0x01) == mapping {
		score += 2
	}
	if h.ResetVector >= 0x8000 {
		score++
	}
	for _, c := range b[offset : offset+titleSize] {
		if c != 0 && (c < 0x20 || c > 0x7e) {
			score -= 2
			break
		}
	}
	return score
}

// ComputeChecksum returns the 16-bit sum of every byte in the ROM.
func (c *Cartridge) ComputeChecksum() uint16 {
	var sum uint16
	for _, v := range c.ROM {
		sum += uint16(v)
	}
	return sum
}

// ChecksumValid returns true if the header checksum and its complement
// agree with each other and with the ROM contents.
func (c *Cartridge) ChecksumValid() bool {
	return c.Header.Checksum+c.Header.Complement == 0xffff &&
		c.Header.Checksum == c.ComputeChecksum()
}

// Map copies the ROM into memory at the locations defined by its mapping.
// LoROM places each 32 KiB chunk at offset $8000 of banks $80+i and $00+i.
// HiROM places each 64 KiB chunk in bank $C0+i and mirrors its upper half
// at offset $8000 of banks $80+i and $00+i.
func (c *Cartridge) Map(m *cpu.FlatMemory) error {
	switch c.Mapping {
	case LoROM:
		for i, chunk := range chunks(c.ROM, 0x8000) {
			if i >= 0x80 {
				break
			}
			if err := mirror(m, chunk, byte(i), 0x8000); err != nil {
				return err
			}
		}
	case HiROM:
		for i, chunk := range chunks(c.ROM, 0x10000) {
			if i >= 0x40 {
				break
			}
			if err := m.StoreBytes(cpu.ComposeAddress(0xc0+byte(i), 0), chunk); err != nil {
				return err
			}
			if len(chunk) > 0x8000 {
				if err := mirror(m, chunk[0x8000:], byte(i), 0x8000); err != nil {
					return err
				}
			}
		}
	default:
		return fmt.Errorf("unsupported mapping %v", c.Mapping)
	}
	return nil
}

// Store a chunk in the upper bank half ($80+i) and in the lower half
// ($00+i) unless that would overlap work RAM at $7E-$7F.
func mirror(m *cpu.FlatMemory, chunk []byte, i byte, offset uint16) error {
	if err := m.StoreBytes(cpu.ComposeAddress(0x80+i, offset), chunk); err != nil {
		return err
	}
	if i < 0x7e {
		return m.StoreBytes(cpu.ComposeAddress(i, offset), chunk)
	}
	return nil
}

func chunks(b []byte, size int) [][]byte {
	var c [][]byte
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		c = append(c, b[:n])
		b = b[n:]
	}
	return c
}
