package uvr613

import (
	"fmt"

	"dloggcsv.dev/configtree"
	"dloggcsv.dev/value"
)

// Prefix names one of the seven channel groups a UVR 61-3 v1.4 sample
// exposes.
type Prefix string

const (
	PrefixS    Prefix = "S"
	PrefixE    Prefix = "E"
	PrefixA    Prefix = "A"
	PrefixAD   Prefix = "A.D"
	PrefixAA   Prefix = "A.A"
	PrefixWMZP Prefix = "WMZ.P"
	PrefixWMZE Prefix = "WMZ.E"
)

// capability is the maximum 1-based channel number each prefix
// accepts, fixed by the UVR 61-3 v1.4 wire layout: 6 internal inputs
// (S) plus 9 external inputs (E) make up the 15-element Inputs array;
// 3 digital outputs (A); 1 output-drive channel (A.D); 2 analog
// outputs (A.A); 3 heat meters, addressable by either their power
// (WMZ.P) or energy (WMZ.E) reading.
var capability = map[Prefix]int{
	PrefixS:    6,
	PrefixE:    9,
	PrefixA:    3,
	PrefixAD:   1,
	PrefixAA:   2,
	PrefixWMZP: 3,
	PrefixWMZE: 3,
}

// ParsePrefix validates s against the fixed set of channel prefixes.
func ParsePrefix(s string) (Prefix, bool) {
	p := Prefix(s)
	if _, ok := capability[p]; !ok {
		return "", false
	}
	return p, true
}

// Address identifies a single channel on a single controller attached
// to a single communication line.
type Address struct {
	LineID        int // 0-255, default 0
	Controller    int // 1-2, default 1
	ChannelNumber int // 1-based, range depends on ChannelPrefix
	ChannelPrefix Prefix
}

// Validate checks addr's fields against their configured ranges and
// the channel prefix's capability limit.
func (addr Address) Validate() error {
	if addr.LineID < 0 || addr.LineID > 255 {
		return fmt.Errorf("uvr613: line_id %d out of range [0,255]: %w", addr.LineID, value.ErrConfig)
	}
	if addr.Controller != 1 && addr.Controller != 2 {
		return fmt.Errorf("uvr613: controller %d out of range [1,2]: %w", addr.Controller, value.ErrConfig)
	}
	max, ok := capability[addr.ChannelPrefix]
	if !ok {
		return fmt.Errorf("uvr613: unknown channel_prefix %q: %w", addr.ChannelPrefix, value.ErrConfig)
	}
	if addr.ChannelNumber < 1 || addr.ChannelNumber > 256 {
		return fmt.Errorf("uvr613: channel_number %d out of range [1,256]: %w", addr.ChannelNumber, value.ErrConfig)
	}
	if addr.ChannelNumber > max {
		return fmt.Errorf("uvr613: channel_number %d exceeds capability %d for prefix %q: %w",
			addr.ChannelNumber, max, addr.ChannelPrefix, value.ErrConfig)
	}
	return nil
}

// AddressFromConfig reads an Address out of a configtree.Node
// describing one channel's address group, applying the defaults
// line_id=0 and controller=1 when absent. channel_number and
// channel_prefix are required.
func AddressFromConfig(n configtree.Node) (Address, error) {
	addr := Address{LineID: 0, Controller: 1}
	if v, ok := n.Int("line_id"); ok {
		addr.LineID = v
	}
	if v, ok := n.Int("controller"); ok {
		addr.Controller = v
	}
	num, ok := n.Int("channel_number")
	if !ok {
		return Address{}, fmt.Errorf("uvr613: channel_number is required: %w", value.ErrConfig)
	}
	addr.ChannelNumber = num

	prefixStr, ok := n.String("channel_prefix")
	if !ok {
		return Address{}, fmt.Errorf("uvr613: channel_prefix is required: %w", value.ErrConfig)
	}
	prefix, ok := ParsePrefix(prefixStr)
	if !ok {
		return Address{}, fmt.Errorf("uvr613: unknown channel_prefix %q: %w", prefixStr, value.ErrConfig)
	}
	addr.ChannelPrefix = prefix

	if err := addr.Validate(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// SelectSample picks which of a line's active-data slots addr's
// Controller field refers to. A DLOGG-1DL module (or a 1DL-mode line
// on any gateway) only ever populates slot 0; selecting controller 2
// against such a line is rejected, as is selecting any controller
// before the line's first successful sync (sampleCount 0) — reads
// before the first sync return InvalidAddress.
func SelectSample(addr Address, sampleCount int) (int, error) {
	idx := addr.Controller - 1
	if idx < 0 || idx >= sampleCount {
		return 0, fmt.Errorf("uvr613: controller %d has no active-data slot (only %d available): %w",
			addr.Controller, sampleCount, value.ErrInvalidAddress)
	}
	return idx, nil
}
