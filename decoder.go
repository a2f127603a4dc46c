// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package easybus

import (
	"fmt"
	"math"
	"strings"
)

// ValueEncoding selects how a value reply is decoded. The two encodings are
// incompatible and cannot be told apart from the reply, so the encoding is
// fixed per device generation by configuration.
type ValueEncoding int

const (
	// EncodingExtended is the 9-byte reply carrying a 27-bit value.
	EncodingExtended ValueEncoding = iota
	// EncodingLegacy is the 6-byte reply carrying a 14-bit value.
	EncodingLegacy
)

// Response lengths
const (
	ExtendedResponseLen = 9
	LegacyResponseLen   = 6
	UnitResponseLen     = 9
)

const (
	valueBias      uint32 = 0x02000000
	errorThreshold uint32 = 100000000 + valueBias
	valueMask      uint32 = 0x07FFFFFF
	signBit        uint32 = 0x04000000
	signExtension  uint32 = 0xF8000000

	legacyValueMask uint16 = 0x3FFF
	legacyOffset           = 2048
	legacyErrorBase uint16 = 16352
)

// String implements fmt.Stringer.
func (e ValueEncoding) String() string {
	switch e {
	case EncodingExtended:
		return "extended"
	case EncodingLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("ValueEncoding(%d)", int(e))
	}
}

// ResponseLen returns the number of bytes to read for a value reply.
func (e ValueEncoding) ResponseLen() int {
	if e == EncodingLegacy {
		return LegacyResponseLen
	}
	return ExtendedResponseLen
}

// ParseValueEncoding parses "extended" or "legacy". An empty string selects
// the extended encoding.
func ParseValueEncoding(s string) (ValueEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "extended":
		return EncodingExtended, nil
	case "legacy":
		return EncodingLegacy, nil
	default:
		return 0, fmt.Errorf("invalid value encoding: %q", s)
	}
}

// decodeU16 undoes the inverted high byte of a transmitted word.
func decodeU16(hi, lo byte) uint16 {
	return uint16(255-hi)<<8 | uint16(lo)
}

// DecodeValue decodes a value reply with the given encoding.
func DecodeValue(response []byte, encoding ValueEncoding) (float64, error) {
	switch encoding {
	case EncodingExtended:
		return DecodeExtendedValue(response)
	case EncodingLegacy:
		return DecodeLegacyValue(response)
	default:
		return 0, fmt.Errorf("easybus: unsupported value encoding %v", encoding)
	}
}

// DecodeExtendedValue decodes a 9-byte value reply. The payload sits at
// offsets 3, 4, 6 and 7; the decimal point position is packed into the top
// five bits of the inverted byte 3.
func DecodeExtendedValue(response []byte) (float64, error) {
	if len(response) == 0 {
		return 0, ErrNoData
	}
	if len(response) < 8 {
		return 0, malformed(8, len(response))
	}
	b3, b4 := response[3], response[4]
	b6, b7 := response[6], response[7]

	raw := (uint32(decodeU16(b3, b4))<<16 | uint32(decodeU16(b6, b7))) & valueMask
	floatPos := int((0xFF-b3)>>3) - 15

	if raw >= errorThreshold {
		return 0, deviceError(raw - valueBias - 100000000)
	}
	if raw&signBit != 0 {
		raw |= signExtension
	}
	raw += valueBias

	return float64(int32(raw)) / math.Pow10(floatPos), nil
}

// DecodeLegacyValue decodes a 6-byte value reply. The two top bits of the
// word hold the decimal point position, the remaining 14 bits the value
// offset by 2048.
func DecodeLegacyValue(response []byte) (float64, error) {
	if len(response) == 0 {
		return 0, ErrNoData
	}
	if len(response) < 5 {
		return 0, malformed(5, len(response))
	}
	word := decodeU16(response[3], response[4])
	floatPos := int(word >> 14)
	raw := word & legacyValueMask

	if raw >= legacyErrorBase {
		return 0, deviceError(uint32(raw))
	}
	return float64(int(raw)-legacyOffset) / math.Pow10(floatPos), nil
}

func deviceError(code uint32) error {
	if kind, ok := LookupDeviceError(code); ok {
		return &DeviceError{Code: code, Kind: kind}
	}
	return &UnknownErrorCodeError{Code: code}
}

// DecodeUnitCode extracts the display unit code from a unit reply.
func DecodeUnitCode(response []byte) (uint16, error) {
	if len(response) == 0 {
		return 0, ErrNoData
	}
	if len(response) < 8 {
		return 0, malformed(8, len(response))
	}
	high, low := response[6], response[7]
	return uint16(high^0xFF)<<8 | uint16(low), nil
}

// DecodeUnit decodes a unit reply into its unit string.
func DecodeUnit(response []byte) (string, error) {
	code, err := DecodeUnitCode(response)
	if err != nil {
		return "", err
	}
	unit, ok := LookupUnit(code)
	if !ok {
		return "", &UnknownUnitCodeError{Code: code}
	}
	return unit, nil
}
