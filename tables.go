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

import "sort"

// DeviceErrorKind identifies an error condition reported by the instrument
// in place of a measurement.
type DeviceErrorKind int

const (
	ErrKindRangeOverrun DeviceErrorKind = iota + 1
	ErrKindRangeUnderrun
	ErrKindCalculationNotPossible
	ErrKindSystemError
	ErrKindBatteryEmpty
	ErrKindSensorDefective
)

// Device error codes as they appear after the bias has been removed.
const (
	CodeRangeOverrun           uint32 = 16352
	CodeRangeUnderrun          uint32 = 16353
	CodeCalculationNotPossible uint32 = 16362
	CodeSystemError            uint32 = 16363
	CodeBatteryEmpty           uint32 = 16364
	CodeSensorDefective        uint32 = 16365
)

var deviceErrorKinds = map[uint32]DeviceErrorKind{
	CodeRangeOverrun:           ErrKindRangeOverrun,
	CodeRangeUnderrun:          ErrKindRangeUnderrun,
	CodeCalculationNotPossible: ErrKindCalculationNotPossible,
	CodeSystemError:            ErrKindSystemError,
	CodeBatteryEmpty:           ErrKindBatteryEmpty,
	CodeSensorDefective:        ErrKindSensorDefective,
}

// deviceErrorText is what the instrument shows on its own display.
var deviceErrorText = map[DeviceErrorKind]string{
	ErrKindRangeOverrun:           "Error 1: measuring range overrun",
	ErrKindRangeUnderrun:          "Error 2: measuring range underrun",
	ErrKindCalculationNotPossible: "Error 11: calculation not possible",
	ErrKindSystemError:            "Error 7: system error",
	ErrKindBatteryEmpty:           "Error 8: battery empty",
	ErrKindSensorDefective:        "Error 9: sensor defective",
}

// String implements fmt.Stringer.
func (k DeviceErrorKind) String() string {
	if s, ok := deviceErrorText[k]; ok {
		return s
	}
	return "unknown device error"
}

// unitNames maps display unit codes to unit strings.
var unitNames = map[uint16]string{
	1:   "°C",
	2:   "°F",
	3:   "K",
	10:  "% r.F",
	20:  "bar",
	21:  "mbar",
	22:  "Pascal",
	23:  "hPascal",
	24:  "kPascal",
	25:  "MPascal",
	27:  "mmHg",
	28:  "PSI",
	29:  "mm H2O",
	30:  "S/cm",
	31:  "ms/cm",
	32:  "uS/cm",
	40:  "ph",
	42:  "rH",
	45:  "mg/l O2",
	46:  "% Sat O2",
	50:  "U/min",
	53:  "Hz",
	55:  "Impuls(e)",
	60:  "m/s",
	61:  "km/h",
	70:  "mm",
	71:  "m",
	72:  "inch",
	73:  "ft",
	80:  "l/h",
	81:  "l/min",
	82:  "m^3/h",
	83:  "m^3/min",
	90:  "g",
	91:  "kg",
	92:  "N",
	93:  "Nm",
	100: "A",
	101: "mA",
	105: "V",
	106: "mV",
	107: "uV",
	111: "W",
	112: "kW",
	115: "Wh",
	116: "kWh",
	119: "Wh/m2",
	120: "mOhm",
	121: "Ohm",
	122: "kOhm",
	123: "MOhm",
	125: "kohm/cm",
	150: "%",
	151: "°",
	152: "ppm",
	160: "g/kg",
	170: "kJ/kg",
	171: "kcal/kg",
	175: "dB",
	176: "dBm",
	177: "dBA",
}

// LookupDeviceError resolves a device error code.
func LookupDeviceError(code uint32) (DeviceErrorKind, bool) {
	kind, ok := deviceErrorKinds[code]
	return kind, ok
}

// LookupUnit resolves a display unit code to its unit string.
func LookupUnit(code uint16) (string, bool) {
	name, ok := unitNames[code]
	return name, ok
}

// UnitCodes returns all known unit codes in ascending order.
func UnitCodes() []uint16 {
	codes := make([]uint16, 0, len(unitNames))
	for code := range unitNames {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

var unitCodes = func() map[string]uint16 {
	codes := make(map[string]uint16, len(unitNames))
	for code, name := range unitNames {
		codes[name] = code
	}
	return codes
}()

// UnitCodeOf returns the display unit code of a unit string.
func UnitCodeOf(name string) (uint16, bool) {
	code, ok := unitCodes[name]
	return code, ok
}
