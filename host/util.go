// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"strconv"
	"strings"
)

func codeString(b []byte) string {
	var parts []string
	for _, v := range b {
		parts = append(parts, fmt.Sprintf("%02X", v))
	}
	return strings.Join(parts, " ")
}

func stringToBool(s string) (bool, error) {
	s = strings.ToLower(s)
	switch s {
	case "0", "false", "off":
		return false, nil
	case "1", "true", "on":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value '%s'", s)
	}
}

// Parse a number. A '$' or '0x' prefix selects hexadecimal, otherwise
// hexMode decides the base.
func parseNumber(s string, hexMode bool) (uint32, error) {
	base := 10
	if hexMode {
		base = 16
	}
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}

	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s'", s)
	}
	return uint32(v), nil
}

// Parse a 24-bit address. The bank and offset may be given separately as
// hexadecimal values in the form "bank:offset" ("$80:8000"), or the address
// may be given as a single number.
func parseAddress(s string, hexMode bool) (uint32, error) {
	if bank, offset, ok := strings.Cut(s, ":"); ok {
		b, err := strconv.ParseUint(strings.TrimPrefix(bank, "$"), 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid bank '%s'", bank)
		}
		o, err := strconv.ParseUint(strings.TrimPrefix(offset, "$"), 16, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid offset '%s'", offset)
		}
		return uint32(b)<<16 | uint32(o), nil
	}

	v, err := parseNumber(s, hexMode)
	if err != nil {
		return 0, err
	}
	if v > 0xffffff {
		return 0, fmt.Errorf("address '%s' out of range", s)
	}
	return v, nil
}

func formatAddress(addr uint32) string {
	return fmt.Sprintf("$%02X:%04X", byte(addr>>16), uint16(addr))
}

var hexString = "0123456789ABCDEF"

func byteToBuf(v byte, b []byte) {
	b[0] = hexString[(v>>4)&0xf]
	b[1] = hexString[v&0xf]
}

func toPrintableChar(v byte) byte {
	switch {
	case v >= 32 && v < 127:
		return v
	case v >= 160 && v < 255:
		return v - 128
	default:
		return '.'
	}
}

func indentWrap(indent int, s string) string {
	const width = 76
	pad := strings.Repeat(" ", indent)

	var lines []string
	line := pad
	for _, w := range strings.Fields(s) {
		if len(line) > indent && len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = pad
		}
		if len(line) > indent {
			line += " "
		}
		line += w
	}
	return strings.Join(append(lines, line), "\n")
}
