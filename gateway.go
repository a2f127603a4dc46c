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
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	modbus_server "github.com/hootrhino/mbserver"
	"github.com/hootrhino/mbserver/store"
)

// RegistersPerChannel is the number of holding registers each channel
// occupies: value (float32, two words, high word first), status, unit code.
// A float32 carries 24 significant bits, so readings beyond about seven
// significant digits are rounded: 999999.99 is published as 1000000.
const RegistersPerChannel = 4

const gatewaySlaveID = 1

// Status register values.
const (
	StatusOK uint16 = iota
	StatusNoData
	StatusMalformed
	StatusDeviceError
	StatusUnrecognizedCode
	StatusTransportError
	StatusPending = 0xFFFF
)

// ReadingStatus classifies a reading's error for the status register.
// Device errors report their device code so Modbus clients can tell them apart.
func ReadingStatus(err error) uint16 {
	var devErr *DeviceError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &devErr):
		return uint16(devErr.Code)
	case errors.Is(err, ErrNoData):
		return StatusNoData
	case errors.Is(err, ErrMalformedResponse):
		return StatusMalformed
	case errors.Is(err, ErrUnrecognizedCode):
		return StatusUnrecognizedCode
	default:
		return StatusTransportError
	}
}

// EncodeReadingRegisters converts a reading into its holding register block.
// A failed reading keeps NaN as value. The value is rounded to the nearest
// float32.
func EncodeReadingRegisters(reading Reading) [RegistersPerChannel]uint16 {
	value := float32(math.NaN())
	if reading.Err == nil {
		value = float32(reading.Value)
	}
	bits := math.Float32bits(value)
	unitCode, _ := UnitCodeOf(reading.Unit)
	return [RegistersPerChannel]uint16{
		uint16(bits >> 16),
		uint16(bits),
		ReadingStatus(reading.Err),
		unitCode,
	}
}

// ModbusGateway republishes channel readings as Modbus TCP holding
// registers. Channel i starts at register i*RegistersPerChannel.
type ModbusGateway struct {
	mu        sync.Mutex
	server    *modbus_server.Server
	registers []uint16
	slots     map[string]int
	logger    io.Writer
}

// NewModbusGateway lays out one register block per channel, in order.
func NewModbusGateway(channels []DeviceChannel) (*ModbusGateway, error) {
	slots := make(map[string]int, len(channels))
	for i, ch := range channels {
		if _, dup := slots[ch.Tag]; dup {
			return nil, fmt.Errorf("duplicate tag: %s", ch.Tag)
		}
		slots[ch.Tag] = i
	}
	registers := make([]uint16, len(channels)*RegistersPerChannel)
	for i := range channels {
		registers[i*RegistersPerChannel+2] = StatusPending
	}
	return &ModbusGateway{
		registers: registers,
		slots:     slots,
		logger:    io.Discard,
	}, nil
}

// SetLogger sets the logger for the gateway and its server.
func (g *ModbusGateway) SetLogger(logger io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if logger == nil {
		logger = io.Discard
	}
	g.logger = logger
}

// Start begins serving the register table on addr, e.g. ":502".
func (g *ModbusGateway) Start(addr string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server != nil {
		return fmt.Errorf("gateway already started")
	}
	server := modbus_server.NewServer(store.NewInMemoryStore(), gatewaySlaveID)
	logger := g.logger
	server.SetErrorHandler(func(err error) {
		fmt.Fprintf(logger, "ERROR: easybus gateway: %v\n", err)
	})
	server.SetLogger(logger)
	if err := server.SetHoldingRegisters(g.snapshot()); err != nil {
		return fmt.Errorf("failed to set holding registers: %w", err)
	}
	if err := server.Start(addr); err != nil {
		return fmt.Errorf("failed to start modbus server on %s: %w", addr, err)
	}
	g.server = server
	fmt.Fprintf(logger, "INFO: easybus gateway: serving %d registers on %s\n", len(g.registers), addr)
	return nil
}

// Stop shuts the server down.
func (g *ModbusGateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server == nil {
		return
	}
	g.server.Stop()
	g.server = nil
}

func (g *ModbusGateway) snapshot() []uint16 {
	out := make([]uint16, len(g.registers))
	copy(out, g.registers)
	return out
}

// Publish stores readings in their channel blocks. Readings for unknown tags
// are skipped.
func (g *ModbusGateway) Publish(readings []Reading) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range readings {
		slot, ok := g.slots[r.Tag]
		if !ok {
			fmt.Fprintf(g.logger, "WARNING: easybus gateway: no register block for tag %s\n", r.Tag)
			continue
		}
		block := EncodeReadingRegisters(r)
		copy(g.registers[slot*RegistersPerChannel:], block[:])
	}
	if g.server == nil {
		return nil
	}
	return g.server.SetHoldingRegisters(g.snapshot())
}

// Registers returns a copy of the current register table.
func (g *ModbusGateway) Registers() []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}
