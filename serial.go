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
	"io"
	"time"

	serial "github.com/hootrhino/goserial"
)

// Serial line parameters fixed by the Easybus protocol.
const (
	DefaultBaudRate = 4800
	DefaultDataBits = 8
	DefaultStopBits = 1
	DefaultParity   = "N"
)

// SerialConfig describes the serial port an Easybus interface is attached to.
type SerialConfig struct {
	Address  string        `yaml:"address"`
	BaudRate int           `yaml:"baud_rate"`
	DataBits int           `yaml:"data_bits"`
	StopBits int           `yaml:"stop_bits"`
	Parity   string        `yaml:"parity"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultSerialConfig returns the 4800 baud 8N1 line settings with a one
// second response timeout.
func DefaultSerialConfig(address string) SerialConfig {
	return SerialConfig{
		Address:  address,
		BaudRate: DefaultBaudRate,
		DataBits: DefaultDataBits,
		StopBits: DefaultStopBits,
		Parity:   DefaultParity,
		Timeout:  DefaultResponseTimeout,
	}
}

// Validate checks the line settings.
func (c SerialConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("serial address is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d (must be 5-8)", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("invalid stop bits: %d (must be 1 or 2)", c.StopBits)
	}
	switch c.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("invalid parity: %q (must be N, E or O)", c.Parity)
	}
	return nil
}

// goserialConfig converts c into the port library's configuration.
func (c SerialConfig) goserialConfig() *serial.Config {
	return &serial.Config{
		Address:  c.Address,
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
		Timeout:  c.Timeout,
	}
}

// OpenSerialPort opens the serial port described by config.
func OpenSerialPort(config SerialConfig) (io.ReadWriteCloser, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.Open(config.goserialConfig())
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("%s: %w", config.Address, err)}
	}
	return port, nil
}

// OpenSerialHandler opens a serial port and wraps it in an EasybusHandler.
func OpenSerialHandler(config SerialConfig, encoding ValueEncoding) (*EasybusHandler, error) {
	port, err := OpenSerialPort(config)
	if err != nil {
		return nil, err
	}
	return NewEasybusHandler(port, HandlerConfig{
		Encoding:    encoding,
		ReadTimeout: config.Timeout,
	}), nil
}
