// Package uvr613 decodes the UVR 61-3 controller's v1.4 active-data
// wire body into physical values, and resolves channel addresses
// against it.
//
// The bit-field layout is decoded explicitly with byte/mask/shift
// arithmetic rather than an overlaid Go struct, since Go (like C) does
// not guarantee a portable in-memory layout for non-byte-aligned
// bit-fields across compilers/architectures.
package uvr613

import (
	"fmt"

	"dloggcsv.dev/value"
)

// Input type codes, the 3-bit "type" field of each input's second
// byte.
const (
	inputUnused          byte = 0
	inputDigital         byte = 1
	inputTemperature     byte = 2
	inputVolumeFlow      byte = 3
	inputSolarRadiation  byte = 6
	inputRoomTemperature byte = 7
)

// Input is one decoded control-input field.
type Input struct {
	Sign      bool
	Type      byte
	HighValue byte // 4 bits
	LowValue  byte
}

// raw12 reconstructs the full 12-bit magnitude from the high/low
// value bytes.
func (in Input) raw12() int {
	return int(in.HighValue)<<8 | int(in.LowValue)
}

// rawRoomTemp reconstructs the 9-bit magnitude used by the room
// temperature conversion, which keeps only the bottom bit of the
// 4-bit highValue nibble.
func (in Input) rawRoomTemp() int {
	return int(in.HighValue&0x1)<<8 | int(in.LowValue)
}

func (in Input) signed(raw int) int {
	if in.Sign {
		return -raw
	}
	return raw
}

// Value converts the decoded input field to its physical
// representation, per the UVR 61-3 v1.4 conversion table.
func (in Input) Value() value.Value {
	switch in.Type {
	case inputUnused:
		return value.Err(value.ErrInvalidAddress)
	case inputDigital:
		return value.Long(int64(in.LowValue & 0x1))
	case inputTemperature:
		return value.Double(float64(in.signed(in.raw12())) * 0.1)
	case inputVolumeFlow:
		return value.Double(float64(in.signed(in.raw12())) * 4.0)
	case inputSolarRadiation:
		return value.Double(float64(in.signed(in.raw12())) * 1.0)
	case inputRoomTemperature:
		return value.Double(float64(in.signed(in.rawRoomTemp())) * 0.1)
	default:
		return value.Err(value.ErrInvalidResponse)
	}
}

// OutputDrive is the decoded speed-control bit-field.
//
// The active flag is carried on the wire active-low: a zero bit means
// the output is driving.
type OutputDrive struct {
	Active bool
	Speed  byte // 0-30
}

// AnalogOutput is one decoded analog output channel. Like
// OutputDrive, active is wired active-low.
type AnalogOutput struct {
	Active  bool
	Voltage byte // 0-10V in 0.1V steps
}

// HeatMeter is one decoded heat-meter register: current power and
// accumulated energy, in their native little-endian units.
type HeatMeter struct {
	CurrentDeciKW uint16
	EnergyDeciKWh uint16
	EnergyMWh     uint16
}

// Body is the fully decoded UVR 61-3 v1.4 active-data wire body.
type Body struct {
	Inputs            [15]Input
	Output            byte
	OutputDrive       OutputDrive
	AnalogOutputs     [2]AnalogOutput
	HeatMeterRegister byte
	HeatMeters        [3]HeatMeter
}

// wireSize is the fixed 53-byte length of the UVR 61-3 v1.4
// active-data body.
const wireSize = 53

// DecodeBody parses the 53-byte active-data wire body into Body.
func DecodeBody(data [wireSize]byte) Body {
	var b Body

	off := 0
	for i := range b.Inputs {
		low := data[off]
		packed := data[off+1]
		b.Inputs[i] = Input{
			Sign:      packed&0x1 != 0,
			Type:      (packed >> 1) & 0x7,
			HighValue: (packed >> 4) & 0xF,
			LowValue:  low,
		}
		off += 2
	}

	b.Output = data[off]
	off++

	drive := data[off]
	off++
	b.OutputDrive = OutputDrive{
		Active: drive&0x1 == 0,
		Speed:  (drive >> 3) & 0x1F,
	}

	for i := range b.AnalogOutputs {
		v := data[off]
		off++
		b.AnalogOutputs[i] = AnalogOutput{
			Active:  v&0x1 == 0,
			Voltage: (v >> 1) & 0x7F,
		}
	}

	b.HeatMeterRegister = data[off]
	off++

	for i := range b.HeatMeters {
		cur := uint16(data[off]) | uint16(data[off+1])<<8
		kwh := uint16(data[off+2]) | uint16(data[off+3])<<8
		mwh := uint16(data[off+4]) | uint16(data[off+5])<<8
		b.HeatMeters[i] = HeatMeter{CurrentDeciKW: cur, EnergyDeciKWh: kwh, EnergyMWh: mwh}
		off += 6
	}

	return b
}

// heatMeterEnabled reports whether the register bit for the 1-based
// meter index i is set.
func (b Body) heatMeterEnabled(i int) bool {
	return b.HeatMeterRegister&(1<<uint(i-1)) != 0
}

// Fetch resolves addr against the decoded body and returns the
// channel's current value. A fetch never surfaces a Go error for an
// ordinary addressing failure; it reports the failure as an
// Error-tagged Value instead, so one bad channel never aborts the
// whole poll cycle.
func Fetch(addr Address, b Body) (value.Value, error) {
	if err := addr.Validate(); err != nil {
		return value.Err(value.KindOf(err)), nil
	}
	switch addr.ChannelPrefix {
	case PrefixS:
		return b.Inputs[addr.ChannelNumber-1].Value(), nil
	case PrefixE:
		return b.Inputs[6+addr.ChannelNumber-1].Value(), nil
	case PrefixA:
		bit := addr.ChannelNumber - 1
		return value.Long(int64((b.Output >> uint(bit)) & 0x1)), nil
	case PrefixAD:
		if !b.OutputDrive.Active {
			return value.Err(value.ErrInvalidAddress), nil
		}
		return value.Double(float64(b.OutputDrive.Speed) / 30.0), nil
	case PrefixAA:
		out := b.AnalogOutputs[addr.ChannelNumber-1]
		if !out.Active || out.Voltage > 100 {
			return value.Err(value.ErrInvalidAddress), nil
		}
		return value.Double(float64(out.Voltage) * 0.1), nil
	case PrefixWMZP:
		idx := addr.ChannelNumber
		if !b.heatMeterEnabled(idx) {
			return value.Err(value.ErrInvalidAddress), nil
		}
		hm := b.HeatMeters[idx-1]
		return value.Double(float64(hm.CurrentDeciKW) * 0.1), nil
	case PrefixWMZE:
		idx := addr.ChannelNumber
		if !b.heatMeterEnabled(idx) {
			return value.Err(value.ErrInvalidAddress), nil
		}
		hm := b.HeatMeters[idx-1]
		return value.Double(float64(hm.EnergyDeciKWh)*0.1 + float64(hm.EnergyMWh)*1000), nil
	default:
		return value.Value{}, fmt.Errorf("uvr613: unhandled channel prefix %q", addr.ChannelPrefix)
	}
}
