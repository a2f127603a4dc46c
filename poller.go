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
	"sync"
	"sync/atomic"
	"time"
)

// OnDataFunc is a callback type for pushing readings
type OnDataFunc func([]Reading)

// OnErrorFunc is a callback type for error reporting
type OnErrorFunc func(error)

// ChannelScheduler reads the channels of one bus. Requests on a bus are
// strictly sequential; the protocol is half-duplex.
type ChannelScheduler struct {
	client   EasybusApi
	channels []DeviceChannel
	units    map[uint8]string     // Display unit cache by address
	lastRead map[string]time.Time // Last poll time by tag
	mu       sync.Mutex
}

// NewChannelScheduler creates a new ChannelScheduler for an Easybus client
func NewChannelScheduler(client EasybusApi) *ChannelScheduler {
	return &ChannelScheduler{
		client:   client,
		units:    make(map[uint8]string),
		lastRead: make(map[string]time.Time),
	}
}

// Load validates the channel list.
func (cs *ChannelScheduler) Load(channels []DeviceChannel) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	tagMap := make(map[string]bool)
	for _, ch := range channels {
		if ch.Tag == "" {
			return fmt.Errorf("channel at address %d has no tag", ch.Address)
		}
		if tagMap[ch.Tag] {
			return fmt.Errorf("duplicate tag: %s", ch.Tag)
		}
		tagMap[ch.Tag] = true
	}
	cs.channels = append([]DeviceChannel(nil), channels...)
	cs.units = make(map[uint8]string)
	cs.lastRead = make(map[string]time.Time)
	return nil
}

// Channels returns a copy of the loaded channels.
func (cs *ChannelScheduler) Channels() []DeviceChannel {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]DeviceChannel(nil), cs.channels...)
}

// readChannel reads one channel. The display unit is read once and cached;
// a failed reading drops the cached unit so it is read again next time.
func (cs *ChannelScheduler) readChannel(ch DeviceChannel) Reading {
	reading := Reading{Tag: ch.Tag, Address: ch.Address}
	unit, ok := cs.units[ch.Address]
	if !ok {
		var err error
		unit, err = cs.client.ReadDisplayUnit(ch.Address)
		if err != nil {
			reading.Err = fmt.Errorf("channel %s: %w", ch.Tag, err)
			reading.Timestamp = time.Now()
			return reading
		}
		cs.units[ch.Address] = unit
	}
	reading.Unit = unit
	value, err := cs.client.ReadValueAs(ch.Address, ch.Encoding)
	reading.Timestamp = time.Now()
	if err != nil {
		delete(cs.units, ch.Address)
		reading.Err = fmt.Errorf("channel %s: %w", ch.Tag, err)
		return reading
	}
	reading.Value = value
	return reading
}

// ReadAll reads every channel once.
func (cs *ChannelScheduler) ReadAll() ([]Reading, []error) {
	return cs.read(time.Time{})
}

// ReadDue reads the channels whose frequency has elapsed at now.
func (cs *ChannelScheduler) ReadDue(now time.Time) ([]Reading, []error) {
	return cs.read(now)
}

func (cs *ChannelScheduler) read(now time.Time) ([]Reading, []error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var readings []Reading
	var errs []error
	for _, ch := range cs.channels {
		if !now.IsZero() {
			period := time.Duration(ch.Frequency) * time.Millisecond
			if last, ok := cs.lastRead[ch.Tag]; ok && now.Sub(last) < period {
				continue
			}
			cs.lastRead[ch.Tag] = now
		}
		r := cs.readChannel(ch)
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
		readings = append(readings, r)
	}
	return readings, errs
}

// ReadingStream handles asynchronous data pushing and callback dispatch
type ReadingStream struct {
	dataCh   chan []Reading
	stopCh   chan struct{}
	stopOnce sync.Once
	onData   atomic.Value // Stores OnDataFunc callback
	onError  atomic.Value // Stores OnErrorFunc callback
}

// NewReadingStream creates a ReadingStream with a given buffer size
func NewReadingStream(bufferSize int) *ReadingStream {
	return &ReadingStream{
		dataCh: make(chan []Reading, bufferSize),
		stopCh: make(chan struct{}),
	}
}

// SetOnData sets the callback for data events
func (rs *ReadingStream) SetOnData(fn OnDataFunc) {
	rs.onData.Store(fn)
}

// SetOnError sets the callback for error events
func (rs *ReadingStream) SetOnError(fn OnErrorFunc) {
	rs.onError.Store(fn)
}

// Start launches the goroutine to dispatch data to the OnData callback
func (rs *ReadingStream) Start() {
	go func() {
		for {
			select {
			case <-rs.stopCh:
				return
			case data := <-rs.dataCh:
				if cb, ok := rs.onData.Load().(OnDataFunc); ok && cb != nil {
					cb(data)
				}
			}
		}
	}()
}

// Push sends readings to the stream, unless stopped
func (rs *ReadingStream) Push(data []Reading) {
	select {
	case rs.dataCh <- data:
	case <-rs.stopCh:
	}
}

// ReportError hands err to the OnError callback, if any.
func (rs *ReadingStream) ReportError(err error) {
	if cb, ok := rs.onError.Load().(OnErrorFunc); ok && cb != nil {
		cb(err)
	}
}

// Stop signals the stream to stop processing
func (rs *ReadingStream) Stop() {
	rs.stopOnce.Do(func() { close(rs.stopCh) })
}

// EasybusChannelManager coordinates channel scheduling and streaming for one bus
type EasybusChannelManager struct {
	Scheduler *ChannelScheduler
	Stream    *ReadingStream
}

// NewEasybusChannelManager creates a new manager for an Easybus client
func NewEasybusChannelManager(client EasybusApi, bufferSize int) *EasybusChannelManager {
	return &EasybusChannelManager{
		Scheduler: NewChannelScheduler(client),
		Stream:    NewReadingStream(bufferSize),
	}
}

// LoadChannels loads the channels to poll
func (m *EasybusChannelManager) LoadChannels(channels []DeviceChannel) error {
	return m.Scheduler.Load(channels)
}

// ReadAndStream reads the due channels, pushes the readings and reports errors
func (m *EasybusChannelManager) ReadAndStream(now time.Time) []error {
	readings, errs := m.Scheduler.ReadDue(now)
	if len(readings) > 0 {
		m.Stream.Push(readings)
	}
	for _, err := range errs {
		m.Stream.ReportError(err)
	}
	return errs
}

// SetOnData sets the data callback for the stream
func (m *EasybusChannelManager) SetOnData(fn OnDataFunc) {
	m.Stream.SetOnData(fn)
}

// SetOnError sets the error callback for the stream
func (m *EasybusChannelManager) SetOnError(fn OnErrorFunc) {
	m.Stream.SetOnError(fn)
}

// Start launches the stream's goroutine
func (m *EasybusChannelManager) Start() {
	m.Stream.Start()
}

// Stop signals the stream to stop
func (m *EasybusChannelManager) Stop() {
	m.Stream.Stop()
}

// EasybusDevicePoller polls channel managers at a fixed interval. Managers
// own separate buses and are polled in parallel.
type EasybusDevicePoller struct {
	managers []*EasybusChannelManager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEasybusDevicePoller creates a new EasybusDevicePoller with the given interval.
func NewEasybusDevicePoller(interval time.Duration) *EasybusDevicePoller {
	return &EasybusDevicePoller{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// AddManager adds an EasybusChannelManager to the poller.
func (dp *EasybusDevicePoller) AddManager(mgr *EasybusChannelManager) {
	dp.managers = append(dp.managers, mgr)
}

// Start initiates the polling process.
func (dp *EasybusDevicePoller) Start() {
	for _, mgr := range dp.managers {
		mgr.Start()
	}
	dp.wg.Add(1)
	go dp.poll()
}

func (dp *EasybusDevicePoller) poll() {
	defer dp.wg.Done()
	ticker := time.NewTicker(dp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-dp.stopCh:
			return
		case now := <-ticker.C:
			dp.pollManagers(now)
		}
	}
}

func (dp *EasybusDevicePoller) pollManagers(now time.Time) {
	var wg sync.WaitGroup
	for _, mgr := range dp.managers {
		wg.Add(1)
		go func(m *EasybusChannelManager) {
			defer wg.Done()
			m.ReadAndStream(now)
		}(mgr)
	}
	wg.Wait()
}

// Stop stops the polling process and cleans up resources.
func (dp *EasybusDevicePoller) Stop() {
	dp.stopOnce.Do(func() {
		close(dp.stopCh)
		dp.wg.Wait()
		for _, mgr := range dp.managers {
			mgr.Stop()
		}
	})
}
