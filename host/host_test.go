package host

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runScript(t *testing.T, h *Host, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := h.RunCommands(strings.NewReader(strings.Join(lines, "\n")), &out, false); err != nil {
		t.Fatalf("RunCommands failed: %v\noutput:\n%s", err, out.String())
	}
	return out.String()
}

func expectOutput(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestRunProgram(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"memory set 0:8000 a9 34 12 8d 00 20 db",
		"register pb 0",
		"register pc $8000",
		"run",
	)

	expectOutput(t, out, "Stored 7 byte(s) at $00:8000.", "CPU halted at $00:8006")
	if h.vm.CPU.Reg.A != 0x1234 {
		t.Errorf("A incorrect. exp: $1234, got: $%04X", h.vm.CPU.Reg.A)
	}
	if v, _ := h.mem.LoadWord(0x2000); v != 0x1234 {
		t.Errorf("memory incorrect. exp: $1234, got: $%04X", v)
	}
}

func TestBreakpoint(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"memory set 0:8000 ea ea ea db",
		"register pb 0",
		"register pc $8000",
		"breakpoint add 0:8002",
		"run",
	)
	expectOutput(t, out, "Breakpoint added at $00:8002.", "Breakpoint hit at $00:8002.")
	if pc := h.vm.CPU.PCAddress(); pc != 0x8002 {
		t.Errorf("PC incorrect. exp: $008002, got: $%06X", pc)
	}

	out = runScript(t, h,
		"breakpoint list",
		"breakpoint disable $8002",
		"run",
	)
	expectOutput(t, out, "$00:8002 true", "Breakpoint at $00:8002 disabled.", "CPU halted at $00:8003")
}

func TestDataBreakpoint(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"memory set 0:8000 8d 00 20 ea db",
		"register pb 0",
		"register pc $8000",
		"register a $55",
		"databreakpoint add 0:2001 0",
		"run",
	)
	expectOutput(t, out, "Conditional data breakpoint added at $00:2001 for value $00.",
		"Data breakpoint hit on address $00:2001.")
	if pc := h.vm.CPU.PCAddress(); pc != 0x8003 {
		t.Errorf("PC incorrect. exp: $008003, got: $%06X", pc)
	}
}

func TestStepAndDisassemble(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"memory set 0:8000 a9 34 12 e2 20 69 01 db",
		"register pb 0",
		"register pc $8000",
		"disassemble 0:8000 4",
		"step 2",
	)
	expectOutput(t, out,
		"00:8000-   A9 34 12       LDA #$1234",
		"00:8003-   E2 20          SEP #$20",
		"00:8005-   69 01 DB       ADC #$DB01",
	)
	if pc := h.vm.CPU.PCAddress(); pc != 0x8005 {
		t.Errorf("PC incorrect. exp: $008005, got: $%06X", pc)
	}

	// The accumulator is now 8 bits wide.
	out = runScript(t, h, "disassemble . 1")
	expectOutput(t, out, "00:8005-   69 01          ADC #$01")
}

func TestRegisterCommand(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"register a $1234",
		"register accsize 1",
		"register db $7e",
		"register ps $03",
		"register q 1",
	)
	expectOutput(t, out,
		"Register A set to $1234.",
		"Flag AccSize set to true.",
		"Register DB set to $7E.",
		"Register PS set to [nvmxdiZC].",
		"Register 'q' not found.",
	)

	r := h.vm.CPU.Reg
	if r.A != 0x0034 {
		t.Errorf("A incorrect. exp: $0034, got: $%04X", r.A)
	}
	if r.DB != 0x7e || r.PS.Byte() != 0x03 {
		t.Errorf("registers incorrect: DB=$%02X PS=$%02X", r.DB, r.PS.Byte())
	}
}

func TestSettings(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"set hexmode true",
		"set memdump 20",
		"register pc 9000",
		"set nosuch 1",
		"set",
	)
	expectOutput(t, out, "Setting updated.", "Setting 'nosuch' not found", "HexMode          true")
	if h.vm.CPU.Reg.PC != 0x9000 {
		t.Errorf("PC incorrect. exp: $9000, got: $%04X", h.vm.CPU.Reg.PC)
	}
	if h.settings.MemDumpBytes != 0x20 {
		t.Errorf("MemDumpBytes incorrect. exp: 32, got: %d", h.settings.MemDumpBytes)
	}
}

func TestMemoryDump(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"memory set 7e:0000 48 49 00 ff",
		"memory dump 7e:0000 4",
	)
	expectOutput(t, out, "7E:0000-  48 49 00 FF")
	if !strings.Contains(out, "HI..") {
		t.Errorf("printable column missing:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	out := runScript(t, New(), "frobnicate")
	expectOutput(t, out, "Command not found.")
}

func TestHelp(t *testing.T) {
	out := runScript(t, New(), "help", "help step")
	expectOutput(t, out, "go65816 commands:", "breakpoint", "Syntax: step [<count>]")
}

func TestQuit(t *testing.T) {
	var out bytes.Buffer
	err := New().RunCommands(strings.NewReader("quit\nregister\n"), &out, false)
	if !errors.Is(err, ErrQuit) {
		t.Errorf("expected ErrQuit, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	img := make([]byte, 0x8000)
	img[0], img[1] = 0xea, 0xdb
	h := img[0x7fc0:]
	copy(h, "HOST TEST")
	h[0x15] = 0x20
	h[0x3c], h[0x3d] = 0x00, 0x80

	dir := t.TempDir()
	romFile := filepath.Join(dir, "test.sfc")
	if err := os.WriteFile(romFile, img, 0o644); err != nil {
		t.Fatal(err)
	}
	rawFile := filepath.Join(dir, "test.bin")
	if err := os.WriteFile(rawFile, []byte{0x18, 0x38}, 0o644); err != nil {
		t.Fatal(err)
	}

	host := New()
	host.debugger.AddBreakpoint(0x808001)
	out := runScript(t, host,
		"load "+romFile,
		"load "+rawFile+" 7e:1000",
		"run",
	)
	expectOutput(t, out,
		"Loaded 'HOST TEST' (LoROM, 32 KiB, checksum mismatch).",
		"Loaded '"+rawFile+"' to $7E:1000..$7E:1001.",
		"Breakpoint hit at $80:8001.",
	)
	if v, _ := host.mem.LoadByte(0x7e1001); v != 0x38 {
		t.Errorf("raw load incorrect. exp: $38, got: $%02X", v)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		s       string
		hexMode bool
		addr    uint32
		ok      bool
	}{
		{"$80:8000", false, 0x808000, true},
		{"7e:1234", false, 0x7e1234, true},
		{"$808000", false, 0x808000, true},
		{"0x1234", false, 0x001234, true},
		{"100", false, 100, true},
		{"100", true, 0x100, true},
		{"100:0000", false, 0, false},
		{"00:10000", false, 0, false},
		{"$1000000", false, 0, false},
		{"zz", false, 0, false},
	}
	for _, test := range tests {
		addr, err := parseAddress(test.s, test.hexMode)
		if (err == nil) != test.ok {
			t.Errorf("parseAddress(%q) error: %v", test.s, err)
			continue
		}
		if test.ok && addr != test.addr {
			t.Errorf("parseAddress(%q) incorrect. exp: $%06X, got: $%06X", test.s, test.addr, addr)
		}
	}
}
