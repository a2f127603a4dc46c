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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannelScheduler_ReadAll(t *testing.T) {
	device := newFakeInstrument()
	device.setUnitReply(1, 1)
	device.setValueReply(1, encodeExtendedValue(253, 1))
	device.setUnitReply(2, 20)
	device.setValueReply(2, encodeLegacyValue(1013, 3))
	device.setUnitReply(3, 1)
	handler := newTestHandler(device, EncodingExtended)

	scheduler := NewChannelScheduler(handler)
	require.NoError(t, scheduler.Load([]DeviceChannel{
		{Tag: "temp", Address: 1},
		{Tag: "press", Address: 2, Encoding: EncodingLegacy},
		{Tag: "silent", Address: 3},
	}))

	readings, errs := scheduler.ReadAll()
	require.Len(t, readings, 3)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrNoData)

	require.Equal(t, "temp", readings[0].Tag)
	require.Equal(t, "°C", readings[0].Unit)
	require.InDelta(t, 25.3, readings[0].Value, 1e-9)
	require.Equal(t, "bar", readings[1].Unit)
	require.InDelta(t, 1.013, readings[1].Value, 1e-9)
	require.ErrorIs(t, readings[2].Err, ErrNoData)

	// Units are cached for healthy channels; a failed channel reads its
	// unit again.
	before := len(device.requests)
	_, _ = scheduler.ReadAll()
	sent := device.requests[before:]
	require.Len(t, sent, 4)
	require.Equal(t, CmdReadValue, sent[0][1])
	require.Equal(t, CmdReadValue, sent[1][1])
	require.Equal(t, CmdReadParameter, sent[2][1])
	require.Equal(t, CmdReadValue, sent[3][1])
}

func TestChannelScheduler_Load(t *testing.T) {
	scheduler := NewChannelScheduler(newTestHandler(newFakeInstrument(), EncodingExtended))
	require.Error(t, scheduler.Load([]DeviceChannel{{Tag: "a", Address: 1}, {Tag: "a", Address: 2}}))
	require.Error(t, scheduler.Load([]DeviceChannel{{Address: 1}}))
	require.NoError(t, scheduler.Load([]DeviceChannel{{Tag: "a", Address: 1}}))
	require.Len(t, scheduler.Channels(), 1)
}

func TestChannelScheduler_ReadDue(t *testing.T) {
	device := newFakeInstrument()
	device.setUnitReply(1, 1)
	device.setValueReply(1, encodeExtendedValue(1, 0))
	device.setUnitReply(2, 1)
	device.setValueReply(2, encodeExtendedValue(2, 0))
	scheduler := NewChannelScheduler(newTestHandler(device, EncodingExtended))
	require.NoError(t, scheduler.Load([]DeviceChannel{
		{Tag: "fast", Address: 1, Frequency: 100},
		{Tag: "slow", Address: 2, Frequency: 1000},
	}))

	start := time.Now()
	readings, _ := scheduler.ReadDue(start)
	require.Len(t, readings, 2)
	readings, _ = scheduler.ReadDue(start.Add(200 * time.Millisecond))
	require.Len(t, readings, 1)
	require.Equal(t, "fast", readings[0].Tag)
	readings, _ = scheduler.ReadDue(start.Add(1100 * time.Millisecond))
	require.Len(t, readings, 2)
}

func TestEasybusDevicePoller(t *testing.T) {
	device := newFakeInstrument()
	device.setUnitReply(1, 1)
	device.setValueReply(1, encodeExtendedValue(-125, 1))
	device.setUnitReply(2, 1)
	device.setValueReply(2, encodeExtendedReply(errorThreshold+CodeRangeUnderrun, 0))
	handler := newTestHandler(device, EncodingExtended)

	mgr := NewEasybusChannelManager(handler, 10)
	require.NoError(t, mgr.LoadChannels([]DeviceChannel{
		{Tag: "cold", Address: 1},
		{Tag: "broken", Address: 2},
	}))

	var dataReceived int32
	var errorReceived int32
	mgr.SetOnData(func(data []Reading) {
		atomic.AddInt32(&dataReceived, 1)
		if len(data) != 2 {
			t.Errorf("expected 2 readings, got %d", len(data))
			return
		}
		if data[0].Err != nil || data[0].Value != -12.5 {
			t.Errorf("unexpected reading %+v", data[0])
		}
	})
	mgr.SetOnError(func(err error) {
		atomic.AddInt32(&errorReceived, 1)
		var devErr *DeviceError
		if !errors.As(err, &devErr) || devErr.Kind != ErrKindRangeUnderrun {
			t.Errorf("unexpected error: %v", err)
		}
	})

	poller := NewEasybusDevicePoller(20 * time.Millisecond)
	poller.AddManager(mgr)
	poller.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&dataReceived) > 0 && atomic.LoadInt32(&errorReceived) > 0
	}, 2*time.Second, 10*time.Millisecond)
	poller.Stop()
}

func TestEasybusDevicePoller_StopTwice(t *testing.T) {
	handler := newTestHandler(newFakeInstrument(), EncodingExtended)
	poller := NewEasybusDevicePoller(20 * time.Millisecond)
	poller.AddManager(NewEasybusChannelManager(handler, 10))
	poller.Start()

	require.NotPanics(t, func() {
		poller.Stop()
		poller.Stop()
	})
}
