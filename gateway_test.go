package easybus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeReadingRegisters(t *testing.T) {
	block := EncodeReadingRegisters(Reading{Tag: "t1", Value: 25.5, Unit: "°C"})
	bits := uint32(block[0])<<16 | uint32(block[1])
	require.Equal(t, float32(25.5), math.Float32frombits(bits))
	require.Equal(t, StatusOK, block[2])
	require.Equal(t, uint16(1), block[3])

	block = EncodeReadingRegisters(Reading{Tag: "t1", Err: ErrNoData})
	bits = uint32(block[0])<<16 | uint32(block[1])
	require.True(t, math.IsNaN(float64(math.Float32frombits(bits))))
	require.Equal(t, StatusNoData, block[2])
	require.Equal(t, uint16(0), block[3])
}

func TestEncodeReadingRegisters_Float32Rounding(t *testing.T) {
	block := EncodeReadingRegisters(Reading{Value: 999999.99})
	got := math.Float32frombits(uint32(block[0])<<16 | uint32(block[1]))
	require.Equal(t, float32(999999.99), got)
	require.Equal(t, float32(1000000), got)

	block = EncodeReadingRegisters(Reading{Value: 12345.6})
	got = math.Float32frombits(uint32(block[0])<<16 | uint32(block[1]))
	require.InDelta(t, 12345.6, float64(got), 0.001)
}

func TestReadingStatus(t *testing.T) {
	require.Equal(t, StatusOK, ReadingStatus(nil))
	require.Equal(t, StatusNoData, ReadingStatus(ErrNoData))
	require.Equal(t, StatusMalformed, ReadingStatus(malformed(8, 3)))
	require.Equal(t, uint16(CodeBatteryEmpty), ReadingStatus(&DeviceError{Code: CodeBatteryEmpty, Kind: ErrKindBatteryEmpty}))
	require.Equal(t, StatusUnrecognizedCode, ReadingStatus(&UnknownUnitCodeError{Code: 9999}))
	require.Equal(t, StatusTransportError, ReadingStatus(&TransportError{Op: "read"}))
}

func TestModbusGateway_Publish(t *testing.T) {
	channels := []DeviceChannel{{Tag: "temp", Address: 1}, {Tag: "press", Address: 2}}
	gw, err := NewModbusGateway(channels)
	require.NoError(t, err)

	regs := gw.Registers()
	require.Len(t, regs, 8)
	require.Equal(t, uint16(StatusPending), regs[2])
	require.Equal(t, uint16(StatusPending), regs[6])

	require.NoError(t, gw.Publish([]Reading{
		{Tag: "press", Value: 1013.25, Unit: "hPascal"},
		{Tag: "unknown", Value: 1},
	}))
	regs = gw.Registers()
	require.Equal(t, uint16(StatusPending), regs[2])
	bits := uint32(regs[4])<<16 | uint32(regs[5])
	require.Equal(t, float32(1013.25), math.Float32frombits(bits))
	require.Equal(t, StatusOK, regs[6])
	require.Equal(t, uint16(23), regs[7])

	gw.Stop()
}

func TestNewModbusGateway_DuplicateTag(t *testing.T) {
	_, err := NewModbusGateway([]DeviceChannel{{Tag: "a"}, {Tag: "a"}})
	require.Error(t, err)
}
