package easybus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupUnit(t *testing.T) {
	testCases := []struct {
		code uint16
		unit string
	}{
		{1, "°C"},
		{2, "°F"},
		{3, "K"},
		{22, "Pascal"},
		{27, "mmHg"},
		{100, "A"},
		{105, "V"},
		{121, "Ohm"},
		{150, "%"},
		{175, "dB"},
		{177, "dBA"},
	}
	for _, tc := range testCases {
		unit, ok := LookupUnit(tc.code)
		require.True(t, ok, "code %d", tc.code)
		require.Equal(t, tc.unit, unit)
		code, ok := UnitCodeOf(tc.unit)
		require.True(t, ok)
		require.Equal(t, tc.code, code)
	}
	_, ok := LookupUnit(9999)
	require.False(t, ok)
	_, ok = LookupUnit(0)
	require.False(t, ok)
}

func TestUnitCodes(t *testing.T) {
	codes := UnitCodes()
	require.Len(t, codes, 61)
	require.Equal(t, uint16(1), codes[0])
	require.Equal(t, uint16(177), codes[len(codes)-1])
	for i := 1; i < len(codes); i++ {
		require.Less(t, codes[i-1], codes[i])
	}
}

func TestLookupDeviceError(t *testing.T) {
	kind, ok := LookupDeviceError(16352)
	require.True(t, ok)
	require.Equal(t, ErrKindRangeOverrun, kind)
	require.Equal(t, "Error 1: measuring range overrun", kind.String())

	kind, ok = LookupDeviceError(16365)
	require.True(t, ok)
	require.Equal(t, "Error 9: sensor defective", kind.String())

	_, ok = LookupDeviceError(16354)
	require.False(t, ok)
	require.Equal(t, "unknown device error", DeviceErrorKind(0).String())
}
