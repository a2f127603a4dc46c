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
	"sync"
	"time"
)

// HandlerConfig holds configuration parameters for an Easybus handler.
type HandlerConfig struct {
	Encoding     ValueEncoding
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultHandlerConfig returns default configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Encoding:    EncodingExtended,
		ReadTimeout: DefaultResponseTimeout,
	}
}

// EasybusHandler implements the EasybusApi interface over one bus.
type EasybusHandler struct {
	logger          io.Writer
	transporter     *EasybusTransporter
	packager        *EasybusPackager
	encoding        ValueEncoding
	mu              sync.Mutex // One outstanding request per bus
	lastDeviceError *DeviceError
}

// NewEasybusHandler creates a handler that talks to instruments over port.
func NewEasybusHandler(port io.ReadWriteCloser, config HandlerConfig) *EasybusHandler {
	return &EasybusHandler{
		logger:      io.Discard,
		transporter: NewEasybusTransporter(port, config.ReadTimeout, config.WriteTimeout),
		packager:    NewEasybusPackager(),
		encoding:    config.Encoding,
	}
}

// GetLastDeviceError returns the last cached DeviceError.
func (h *EasybusHandler) GetLastDeviceError() *DeviceError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastDeviceError
}

// setLastDeviceError caches err when it is a DeviceError. Caller holds h.mu.
func (h *EasybusHandler) setLastDeviceError(err error) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		h.lastDeviceError = devErr
		fmt.Fprintf(h.logger, "WARNING: easybus: cached DeviceError: %v\n", devErr)
	}
}

// GetEncoding implements EasybusApi.
func (h *EasybusHandler) GetEncoding() ValueEncoding {
	return h.encoding
}

// SetLogger implements EasybusApi.
func (h *EasybusHandler) SetLogger(logger io.Writer) {
	if logger == nil {
		logger = io.Discard
	}
	h.logger = logger
}

// exchange sends request and reads the reply while holding the bus.
func (h *EasybusHandler) exchange(address uint8, request []byte, responseLen int) ([]byte, error) {
	if err := h.packager.VerifyChecksums(request); err != nil {
		return nil, fmt.Errorf("easybus: refusing to send invalid frame: %w", err)
	}
	fmt.Fprintf(h.logger, "DEBUG: easybus: Sending request to channel %d: % X\n", address, request)
	response, err := h.transporter.Exchange(request, responseLen)
	if err != nil {
		fmt.Fprintf(h.logger, "ERROR: easybus: Error exchanging with channel %d: %v\n", address, err)
		return nil, err
	}
	fmt.Fprintf(h.logger, "DEBUG: easybus: Received response from channel %d: % X\n", address, response)
	return response, nil
}

// ReadValue reads the displayed measuring value using the handler's encoding.
func (h *EasybusHandler) ReadValue(address uint8) (float64, error) {
	return h.ReadValueAs(address, h.encoding)
}

// ReadValueAs reads the displayed measuring value of an instrument whose
// generation uses encoding.
func (h *EasybusHandler) ReadValueAs(address uint8, encoding ValueEncoding) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	response, err := h.exchange(address, h.packager.PackValueRequest(address), encoding.ResponseLen())
	if err != nil {
		return 0, err
	}
	value, err := DecodeValue(response, encoding)
	if err != nil {
		h.setLastDeviceError(err)
		fmt.Fprintf(h.logger, "ERROR: easybus: Error decoding value from channel %d: %v\n", address, err)
		return 0, err
	}
	return value, nil
}

// ReadDisplayUnit reads the unit the instrument currently displays.
func (h *EasybusHandler) ReadDisplayUnit(address uint8) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	response, err := h.exchange(address, h.packager.PackUnitRequest(address), UnitResponseLen)
	if err != nil {
		return "", err
	}
	unit, err := DecodeUnit(response)
	if err != nil {
		fmt.Fprintf(h.logger, "ERROR: easybus: Error decoding unit from channel %d: %v\n", address, err)
		return "", err
	}
	return unit, nil
}

// ReadReading reads value and display unit of one instrument.
func (h *EasybusHandler) ReadReading(address uint8) (Reading, error) {
	reading := Reading{Address: address}
	unit, err := h.ReadDisplayUnit(address)
	if err != nil {
		reading.Err = err
		return reading, err
	}
	reading.Unit = unit
	value, err := h.ReadValue(address)
	reading.Timestamp = time.Now()
	if err != nil {
		reading.Err = err
		return reading, err
	}
	reading.Value = value
	return reading, nil
}

// ReadRawData writes a raw request and returns the raw reply.
func (h *EasybusHandler) ReadRawData(request []byte, responseLen int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(request) == 0 {
		return nil, fmt.Errorf("easybus: empty request")
	}
	return h.exchange(AddressFromChannel(request[0]), request, responseLen)
}

// Close closes the underlying port.
func (h *EasybusHandler) Close() error {
	return h.transporter.Close()
}
