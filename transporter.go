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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// DefaultResponseTimeout is how long an instrument gets to answer a request.
const DefaultResponseTimeout = 1 * time.Second

// TimedReadWriteCloser is implemented by ports that support timeout operations.
type TimedReadWriteCloser interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

// EasybusTransporter moves raw frames over a half-duplex link. It holds the
// port; the codec itself never does.
type EasybusTransporter struct {
	conn         io.ReadWriteCloser // Serial port, or a TCP connection to a serial server
	readTimeout  time.Duration
	writeTimeout time.Duration
	pending      chan readResult // Read still in flight after a timeout
	carried      bool            // pending was started by an earlier ReadRaw
	leftover     []byte          // Bytes delivered by a pending read beyond what was asked for
	mu           sync.RWMutex
}

// NewEasybusTransporter creates a new EasybusTransporter with the given connection and timeouts.
func NewEasybusTransporter(conn io.ReadWriteCloser, readTimeout, writeTimeout time.Duration) *EasybusTransporter {
	if readTimeout <= 0 {
		readTimeout = DefaultResponseTimeout
	}
	return &EasybusTransporter{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// WriteRaw writes a complete frame to the underlying connection.
func (t *EasybusTransporter) WriteRaw(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(data) == 0 {
		return fmt.Errorf("cannot write empty data")
	}
	if t.conn == nil {
		return &TransportError{Op: "write", Err: io.ErrClosedPipe}
	}
	if c, ok := t.conn.(net.Conn); ok && t.writeTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		defer c.SetWriteDeadline(time.Time{})
	}
	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		written += n
		if err != nil {
			return &TransportError{Op: "write", Err: fmt.Errorf("after %d bytes: %w", written, err)}
		}
		if n == 0 {
			return &TransportError{Op: "write", Err: io.ErrShortWrite}
		}
	}
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// readWithTimeout performs a single Read bounded by timeout. A Read that
// outlives its timeout stays pending and is collected by the next call, so
// at most one Read is ever in flight on the port.
func (t *EasybusTransporter) readWithTimeout(n int, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		if t.pending == nil {
			conn := t.conn
			done := make(chan readResult, 1)
			go func() {
				buf := make([]byte, n)
				m, err := conn.Read(buf)
				done <- readResult{buf[:m], err}
			}()
			t.pending = done
			t.carried = false
		}

		select {
		case res := <-t.pending:
			t.pending = nil
			// An earlier request's read that expired empty says nothing
			// about this one.
			if t.carried && len(res.data) == 0 && res.err != nil && isTimeout(res.err) {
				continue
			}
			return res.data, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReadRaw reads up to n bytes. It returns whatever arrived before the read
// timeout expired, which may be nothing; an empty result is not an error.
func (t *EasybusTransporter) ReadRaw(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 {
		return nil, fmt.Errorf("invalid read length: %d", n)
	}
	if t.conn == nil {
		return nil, &TransportError{Op: "read", Err: io.ErrClosedPipe}
	}
	// Ports that enforce their own timeout are read directly.
	selfTimed := false
	if timedPort, ok := t.conn.(TimedReadWriteCloser); ok {
		if err := timedPort.SetReadTimeout(t.readTimeout); err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		selfTimed = true
	} else if c, ok := t.conn.(net.Conn); ok {
		_ = c.SetReadDeadline(time.Now().Add(t.readTimeout))
		defer c.SetReadDeadline(time.Time{})
		selfTimed = true
	}
	if t.pending != nil {
		t.carried = true
	}

	frame := make([]byte, 0, n)
	if len(t.leftover) > 0 {
		taken := copy(frame[:min(n, len(t.leftover))], t.leftover)
		frame = frame[:taken]
		t.leftover = t.leftover[taken:]
	}
	deadline := time.Now().Add(t.readTimeout)
	for len(frame) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		var chunk []byte
		var err error
		if selfTimed {
			buf := make([]byte, n-len(frame))
			m, rerr := t.conn.Read(buf)
			chunk, err = buf[:m], rerr
		} else {
			chunk, err = t.readWithTimeout(n-len(frame), remaining)
		}
		if extra := len(frame) + len(chunk) - n; extra > 0 {
			t.leftover = append(t.leftover, chunk[len(chunk)-extra:]...)
			chunk = chunk[:len(chunk)-extra]
		}
		frame = append(frame, chunk...)
		if err != nil {
			if isTimeout(err) || errors.Is(err, io.EOF) {
				break
			}
			return frame, &TransportError{Op: "read", Err: err}
		}
		// A port with its own timeout reports expiry as an empty read.
		if len(chunk) == 0 {
			break
		}
	}
	return frame, nil
}

// isTimeout reports whether err means the read deadline passed.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, serial.ErrTimeout) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

// Exchange writes a request and reads up to responseLen bytes of reply.
func (t *EasybusTransporter) Exchange(request []byte, responseLen int) ([]byte, error) {
	if err := t.WriteRaw(request); err != nil {
		return nil, err
	}
	return t.ReadRaw(responseLen)
}

// Close closes the underlying connection.
func (t *EasybusTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.pending = nil
	t.carried = false
	t.leftover = nil
	return err
}

// IsConnected returns true if the connection is still open.
func (t *EasybusTransporter) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}

// SetReadTimeout sets the response timeout.
func (t *EasybusTransporter) SetReadTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = timeout
}

// SetWriteTimeout sets the write timeout for network connections.
func (t *EasybusTransporter) SetWriteTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeTimeout = timeout
}
