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
	"io"
	"time"
)

// EasybusApi defines the interface for Easybus client operations.
type EasybusApi interface {
	// Handler API
	GetLastDeviceError() *DeviceError // GetLastDeviceError returns the last error reported by an instrument
	GetEncoding() ValueEncoding       // GetEncoding returns the value encoding used by this handler
	SetLogger(io.Writer)              // SetLogger sets the logger for the client
	// Standard methods
	ReadValue(address uint8) (float64, error)                           // ReadValue reads the displayed measuring value
	ReadValueAs(address uint8, encoding ValueEncoding) (float64, error) // ReadValueAs reads the value of a given device generation
	ReadDisplayUnit(address uint8) (string, error)                      // ReadDisplayUnit reads the display unit
	ReadReading(address uint8) (Reading, error)                         // ReadReading reads value and unit
	// Extended methods
	ReadRawData(request []byte, responseLen int) ([]byte, error) // ReadRawData exchanges raw frames
}

// Reading is one decoded measurement of a channel.
type Reading struct {
	Tag       string    `json:"tag"`
	Address   uint8     `json:"address"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// DeviceChannel describes one instrument on the bus.
type DeviceChannel struct {
	Tag       string        `json:"tag" yaml:"tag"`
	Alias     string        `json:"alias" yaml:"alias"`
	Address   uint8         `json:"address" yaml:"address"`
	Encoding  ValueEncoding `json:"encoding" yaml:"-"`
	Frequency uint64        `json:"frequency" yaml:"frequency"` // Poll period in milliseconds
}
