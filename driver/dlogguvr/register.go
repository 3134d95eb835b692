// Package dlogguvr registers the dlogg MAC driver and the uvr613
// application driver with the fieldbus registry. Importing it for its
// side effect (the init below) is how cmd/dlogg2csv gains the ability
// to configure "dlogg"/"uvr613" lines without either package depending
// on fieldbus directly.
package dlogguvr

import (
	"fmt"

	"dloggcsv.dev/configtree"
	"dloggcsv.dev/driver/dlogg"
	"dloggcsv.dev/driver/uvr613"
	"dloggcsv.dev/fieldbus"
	"dloggcsv.dev/value"
)

func init() {
	fieldbus.RegisterMAC("dlogg", newDloggMac)
	fieldbus.RegisterApp("uvr613", newUVR613App)
}

// dloggMac is the fieldbus.MacDriver wrapping one configured D-LOGG
// line's protocol state machine. Its position in the registry's
// ordered MAC list is that line's line_id.
type dloggMac struct {
	proto *dlogg.Protocol
}

func newDloggMac(name string, cfg configtree.Node) (fieldbus.MacDriver, error) {
	transport, _ := cfg.String("transport")
	var t dlogg.Transport
	var err error
	switch transport {
	case "ftdi":
		num, _ := cfg.Int("device-nr")
		t, err = dlogg.OpenFTDI(num)
	case "tty", "":
		dev, _ := cfg.String("device")
		t, err = dlogg.OpenTTY(dev)
	default:
		return nil, fmt.Errorf("dlogguvr: mac %q: unknown transport %q: %w", name, transport, value.ErrConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("dlogguvr: mac %q: %w", name, err)
	}
	return &dloggMac{proto: dlogg.NewProtocol(t)}, nil
}

func (m *dloggMac) Sync() error  { return m.proto.Sync() }
func (m *dloggMac) Close() error { return m.proto.Close() }

// uvr613App resolves channel addresses against the UVR 61-3 samples
// its registered lines fetch, picking the line by the address's
// line_id (its 0-based index among the registry's configured macs).
type uvr613App struct {
	lines []*dloggMac
}

func newUVR613App(macs []fieldbus.MacDriver) (fieldbus.AppDriver, error) {
	lines := make([]*dloggMac, 0, len(macs))
	for _, mac := range macs {
		m, ok := mac.(*dloggMac)
		if !ok {
			return nil, fmt.Errorf("dlogguvr: uvr613 app requires dlogg mac lines, got %T: %w", mac, value.ErrConfig)
		}
		lines = append(lines, m)
	}
	return &uvr613App{lines: lines}, nil
}

// Sync is a no-op: each bound MAC's own Sync already refreshed its
// line's active-data frame, and every channel reads out of that
// shared state.
func (a *uvr613App) Sync() error { return nil }

func (a *uvr613App) AddChannel(name string, cfg configtree.Node) (fieldbus.ChannelHandle, error) {
	addr, err := uvr613.AddressFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("dlogguvr: channel %q: %w", name, err)
	}
	if addr.LineID < 0 || addr.LineID >= len(a.lines) {
		return nil, fmt.Errorf("dlogguvr: channel %q: line_id %d does not map to a configured line: %w",
			name, addr.LineID, value.ErrConfig)
	}
	return addr, nil
}

// Fetch never returns a non-nil error for an ordinary runtime
// addressing failure (missing sync, wrong controller slot, absent
// sample) — those become an Error-tagged Value instead, so a single
// bad channel doesn't abort the whole poll's CSV row. The error
// return is reserved for a channel handle of the wrong concrete
// type, which indicates a registry wiring bug rather than a
// field condition.
func (a *uvr613App) Fetch(h fieldbus.ChannelHandle) (value.Value, error) {
	addr, ok := h.(uvr613.Address)
	if !ok {
		return value.Value{}, fmt.Errorf("dlogguvr: fetch: invalid channel handle")
	}
	mac := a.lines[addr.LineID]
	idx, err := uvr613.SelectSample(addr, mac.proto.SampleCount())
	if err != nil {
		return value.Err(value.KindOf(err)), nil
	}
	sample, ok := mac.proto.Sample(idx)
	if !ok {
		return value.Err(value.ErrDeviceNotFound), nil
	}
	body := uvr613.DecodeBody(sample.Data)
	return uvr613.Fetch(addr, body)
}

func (a *uvr613App) Close() error { return nil }
