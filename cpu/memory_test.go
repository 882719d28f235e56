package cpu_test

import (
	"errors"
	"testing"

	"github.com/beevik/go65816/cpu"
)

func TestComposeAddress(t *testing.T) {
	for bank := 0; bank < 256; bank++ {
		for offset := 0; offset < 0x10000; offset++ {
			addr := cpu.ComposeAddress(byte(bank), uint16(offset))
			if addr != uint32(bank)*0x10000+uint32(offset) {
				t.Fatalf("ComposeAddress($%02X, $%04X) = $%06X", bank, offset, addr)
			}
			b, o := cpu.SplitAddress(addr)
			if b != byte(bank) || o != uint16(offset) {
				t.Fatalf("SplitAddress($%06X) = $%02X:%04X", addr, b, o)
			}
		}
	}
}

func TestFlatMemoryLittleEndian(t *testing.T) {
	mem := cpu.NewFlatMemory(0x100)
	if err := mem.StoreWord(0x10, 0xbeef); err != nil {
		t.Fatal(err)
	}
	lo, _ := mem.LoadByte(0x10)
	hi, _ := mem.LoadByte(0x11)
	if lo != 0xef || hi != 0xbe {
		t.Errorf("word stored incorrectly. exp: EF BE, got: %02X %02X", lo, hi)
	}
	w, err := mem.LoadWord(0x10)
	if err != nil || w != 0xbeef {
		t.Errorf("LoadWord incorrect. exp: $BEEF, got: $%04X (%v)", w, err)
	}
}

func TestFlatMemoryBounds(t *testing.T) {
	mem := cpu.NewFlatMemory(0x100)

	tests := []struct {
		name string
		fn   func() error
		addr uint32
	}{
		{"load byte", func() error { _, err := mem.LoadByte(0x100); return err }, 0x100},
		{"load word at end", func() error { _, err := mem.LoadWord(0xff); return err }, 0xff},
		{"store byte", func() error { return mem.StoreByte(0xffffff, 0) }, 0xffffff},
		{"store word at end", func() error { return mem.StoreWord(0xff, 0x1234) }, 0xff},
		{"store bytes", func() error { return mem.StoreBytes(0xfe, []byte{1, 2, 3}) }, 0xfe},
	}

	for _, test := range tests {
		err := test.fn()
		if !errors.Is(err, cpu.ErrMemoryOutOfBounds) {
			t.Errorf("%s: expected out of bounds error, got %v", test.name, err)
			continue
		}
		var merr *cpu.MemoryError
		if !errors.As(err, &merr) || merr.Addr != test.addr {
			t.Errorf("%s: error address incorrect: %v", test.name, err)
		}
	}

	// A failed word store leaves memory untouched.
	mem.StoreByte(0xff, 0x55)
	mem.StoreWord(0xff, 0x1234)
	if v, _ := mem.LoadByte(0xff); v != 0x55 {
		t.Errorf("partial word store. exp: $55, got: $%02X", v)
	}
}
