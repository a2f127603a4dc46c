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
)

// Request commands
const (
	CmdReadValue       byte = 0x00
	CmdReadParameter   byte = 242
	ParamDisplayUnit   byte = 53
	ParamDisplayUnitLo byte = 0x00
)

// Request frame lengths
const (
	ValueRequestLen = 3
	UnitRequestLen  = 6
)

// Channel returns the wire byte addressing a device on the bus. Addresses
// are sent inverted: channel 1 is 254, channel 2 is 253 and so on.
func Channel(address uint8) byte {
	return ^address
}

// EasybusPackager builds Easybus request frames. Each frame is a sequence
// of (data, data, checksum) triples.
type EasybusPackager struct{}

// NewEasybusPackager creates a new EasybusPackager.
func NewEasybusPackager() *EasybusPackager {
	return &EasybusPackager{}
}

// appendTriple appends a data pair and its checksum byte to frame.
func appendTriple(frame []byte, a, b byte) []byte {
	return append(frame, a, b, Checksum(a, b))
}

// PackValueRequest creates the request for the displayed measuring value.
func (p *EasybusPackager) PackValueRequest(address uint8) []byte {
	frame := make([]byte, 0, ValueRequestLen)
	return appendTriple(frame, Channel(address), CmdReadValue)
}

// PackUnitRequest creates the request for the display unit parameter.
func (p *EasybusPackager) PackUnitRequest(address uint8) []byte {
	frame := make([]byte, 0, UnitRequestLen)
	frame = appendTriple(frame, Channel(address), CmdReadParameter)
	return appendTriple(frame, ParamDisplayUnit, ParamDisplayUnitLo)
}

// VerifyChecksums checks every triple of a request frame.
func (p *EasybusPackager) VerifyChecksums(frame []byte) error {
	if len(frame) == 0 || len(frame)%3 != 0 {
		return fmt.Errorf("invalid frame length: %d (must be a multiple of 3)", len(frame))
	}
	for i := 0; i < len(frame); i += 3 {
		want := Checksum(frame[i], frame[i+1])
		if frame[i+2] != want {
			return fmt.Errorf("checksum mismatch at byte %d: expected 0x%02X, got 0x%02X", i+2, want, frame[i+2])
		}
	}
	return nil
}

// AddressFromChannel recovers the bus address from a channel byte.
func AddressFromChannel(channel byte) uint8 {
	return ^channel
}
