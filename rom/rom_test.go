package rom_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/go65816/cpu"
	"github.com/beevik/go65816/rom"
)

// Build a ROM image with a valid header at 'offset'.
func makeImage(size, offset int, mapMode byte, title string) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i / 0x8000)
	}

	h := b[offset : offset+0x40]
	for i := 0; i < 21; i++ {
		h[i] = ' '
	}
	copy(h, title)
	h[0x15] = mapMode
	h[0x17] = 0x08
	h[0x3c], h[0x3d] = 0x00, 0x80

	// A checksum and its complement always add 0x1FE to the byte sum.
	h[0x1c], h[0x1d], h[0x1e], h[0x1f] = 0, 0, 0, 0
	var sum uint16 = 0x1fe
	for _, v := range b {
		sum += uint16(v)
	}
	h[0x1c], h[0x1d] = byte(^sum), byte(^sum>>8)
	h[0x1e], h[0x1f] = byte(sum), byte(sum>>8)
	return b
}

func TestParseLoROM(t *testing.T) {
	cart, err := rom.Parse(makeImage(0x20000, 0x7fc0, 0x20, "LOROM TEST"))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mapping != rom.LoROM {
		t.Errorf("mapping incorrect. exp: LoROM, got: %v", cart.Mapping)
	}
	if cart.Header.Title != "LOROM TEST" {
		t.Errorf("title incorrect: %q", cart.Header.Title)
	}
	if cart.Header.ResetVector != 0x8000 {
		t.Errorf("reset vector incorrect: $%04X", cart.Header.ResetVector)
	}
	if !cart.ChecksumValid() {
		t.Errorf("checksum invalid. header: $%04X, computed: $%04X",
			cart.Header.Checksum, cart.ComputeChecksum())
	}
}

func TestParseHiROM(t *testing.T) {
	cart, err := rom.Parse(makeImage(0x20000, 0xffc0, 0x21, "HIROM TEST"))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mapping != rom.HiROM {
		t.Errorf("mapping incorrect. exp: HiROM, got: %v", cart.Mapping)
	}
	if !cart.ChecksumValid() {
		t.Error("checksum invalid")
	}
}

func TestParseCopierHeader(t *testing.T) {
	img := makeImage(0x10000, 0x7fc0, 0x20, "COPIER")
	withHeader := append(make([]byte, 512), img...)

	cart, err := rom.Parse(withHeader)
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.ROM) != len(img) {
		t.Errorf("copier header not stripped. exp: %d bytes, got: %d", len(img), len(cart.ROM))
	}
	if cart.Header.Title != "COPIER" {
		t.Errorf("title incorrect: %q", cart.Header.Title)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := rom.Parse(make([]byte, 0x4000)); !errors.Is(err, rom.ErrTooSmall) {
		t.Errorf("expected ErrTooSmall, got %v", err)
	}

	junk := make([]byte, 0x10000)
	for i := range junk {
		junk[i] = 0x01
	}
	if _, err := rom.Parse(junk); !errors.Is(err, rom.ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
}

func TestMapLoROM(t *testing.T) {
	cart, err := rom.Parse(makeImage(0x20000, 0x7fc0, 0x20, "MAP"))
	if err != nil {
		t.Fatal(err)
	}
	mem := cpu.NewFlatMemory(cpu.AddressSpace)
	if err := cart.Map(mem); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		addr uint32
		v    byte
	}{
		{0x808000, 0x00},
		{0x818000, 0x01},
		{0x838000, 0x03},
		{0x028000, 0x02},
		{0x840000, 0x00},
	}
	for _, test := range tests {
		if v, _ := mem.LoadByte(test.addr); v != test.v {
			t.Errorf("byte at $%06X incorrect. exp: $%02X, got: $%02X", test.addr, test.v, v)
		}
	}
}

func TestMapHiROM(t *testing.T) {
	cart, err := rom.Parse(makeImage(0x20000, 0xffc0, 0x21, "MAP"))
	if err != nil {
		t.Fatal(err)
	}
	mem := cpu.NewFlatMemory(cpu.AddressSpace)
	if err := cart.Map(mem); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		addr uint32
		v    byte
	}{
		{0xc00000, 0x00},
		{0xc08000, 0x01},
		{0xc10000, 0x02},
		{0x808000, 0x01},
		{0x818000, 0x03},
		{0x018000, 0x03},
	}
	for _, test := range tests {
		if v, _ := mem.LoadByte(test.addr); v != test.v {
			t.Errorf("byte at $%06X incorrect. exp: $%02X, got: $%02X", test.addr, test.v, v)
		}
	}
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.sfc")
	if err := os.WriteFile(filename, makeImage(0x8000, 0x7fc0, 0x20, "FILE"), 0o644); err != nil {
		t.Fatal(err)
	}
	cart, err := rom.Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cart.Header.Title != "FILE" {
		t.Errorf("title incorrect: %q", cart.Header.Title)
	}

	if _, err := rom.Load(filepath.Join(t.TempDir(), "missing.sfc")); err == nil {
		t.Error("expected an error loading a missing file")
	}
}
