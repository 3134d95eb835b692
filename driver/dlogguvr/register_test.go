package dlogguvr

import (
	"testing"

	"dloggcsv.dev/configtree"
	"dloggcsv.dev/driver/dlogg"
	"dloggcsv.dev/fieldbus"
	"dloggcsv.dev/value"
)

func sampleWithInput0(low, packed byte) [53]byte {
	var d [53]byte
	d[0] = low
	d[1] = packed
	return d
}

// sampleWithOutputByte builds a sample with only the digital-output
// byte (offset 30) set, every other field zeroed.
func sampleWithOutputByte(output byte) [53]byte {
	var d [53]byte
	d[30] = output
	return d
}

// sampleWithAnalogOutput builds a sample with only the first analog
// output byte (offset 32) set, every other field zeroed.
func sampleWithAnalogOutput(v byte) [53]byte {
	var d [53]byte
	d[32] = v
	return d
}

func loadCfg(t *testing.T, doc string) configtree.Node {
	t.Helper()
	n, err := configtree.Load([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestUVR613AppFetchesChannelFromSyncedLine(t *testing.T) {
	sim := dlogg.NewSimulator(dlogg.ModuleType{Type: dlogg.ModTypeBLNet, Firmware: 50}, dlogg.Mode1DL,
		[][53]byte{sampleWithInput0(250, 0x04)}) // temperature, 25.0
	defer sim.Close()

	mac := &dloggMac{proto: dlogg.NewProtocol(sim)}
	if err := mac.Sync(); err != nil {
		t.Fatalf("mac Sync: %v", err)
	}

	app, err := newUVR613App([]fieldbus.MacDriver{mac})
	if err != nil {
		t.Fatalf("newUVR613App: %v", err)
	}

	h, err := app.AddChannel("S1", loadCfg(t, "line_id: 0\nchannel_number: 1\nchannel_prefix: S\n"))
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	v, err := app.Fetch(h)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	f, ok := v.Double()
	if !ok || f != 25.0 {
		t.Fatalf("Fetch(S1) = %v, want Double(25.0)", v)
	}
}

func TestUVR613AppRejectsOutOfRangeLineID(t *testing.T) {
	sim := dlogg.NewSimulator(dlogg.ModuleType{Type: dlogg.ModTypeBLNet, Firmware: 50}, dlogg.Mode1DL,
		[][53]byte{sampleWithInput0(0, 0x10)})
	defer sim.Close()

	mac := &dloggMac{proto: dlogg.NewProtocol(sim)}
	if err := mac.Sync(); err != nil {
		t.Fatalf("mac Sync: %v", err)
	}
	app, err := newUVR613App([]fieldbus.MacDriver{mac})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.AddChannel("S1", loadCfg(t, "line_id: 1\nchannel_number: 1\nchannel_prefix: S\n")); err == nil {
		t.Fatal("expected out-of-range line_id to be rejected")
	}
}

func TestUVR613AppFetchesDigitalOutputChannel(t *testing.T) {
	sim := dlogg.NewSimulator(dlogg.ModuleType{Type: dlogg.ModTypeBLNet, Firmware: 50}, dlogg.Mode1DL,
		[][53]byte{sampleWithOutputByte(0x01)}) // A1 on
	defer sim.Close()

	mac := &dloggMac{proto: dlogg.NewProtocol(sim)}
	if err := mac.Sync(); err != nil {
		t.Fatalf("mac Sync: %v", err)
	}

	app, err := newUVR613App([]fieldbus.MacDriver{mac})
	if err != nil {
		t.Fatalf("newUVR613App: %v", err)
	}

	h, err := app.AddChannel("A1", loadCfg(t, "line_id: 0\nchannel_number: 1\nchannel_prefix: A\n"))
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	v, err := app.Fetch(h)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	l, ok := v.Long()
	if !ok || l != 1 {
		t.Fatalf("Fetch(A1) = %v, want Long(1)", v)
	}
}

// TestUVR613AppFetchesUnsetAnalogOutputAsInvalidAddress exercises the
// full sync-then-fetch path for an unset analog output channel: the
// wire value 0x01 (activeN=1, voltage=0) must surface as an
// InvalidAddress error value, not a bogus zero reading.
func TestUVR613AppFetchesUnsetAnalogOutputAsInvalidAddress(t *testing.T) {
	sim := dlogg.NewSimulator(dlogg.ModuleType{Type: dlogg.ModTypeBLNet, Firmware: 50}, dlogg.Mode1DL,
		[][53]byte{sampleWithAnalogOutput(0x01)})
	defer sim.Close()

	mac := &dloggMac{proto: dlogg.NewProtocol(sim)}
	if err := mac.Sync(); err != nil {
		t.Fatalf("mac Sync: %v", err)
	}

	app, err := newUVR613App([]fieldbus.MacDriver{mac})
	if err != nil {
		t.Fatalf("newUVR613App: %v", err)
	}

	h, err := app.AddChannel("A.A1", loadCfg(t, "line_id: 0\nchannel_number: 1\nchannel_prefix: A.A\n"))
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	v, err := app.Fetch(h)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	k, ok := v.ErrorKind()
	if !ok || k != value.ErrInvalidAddress {
		t.Fatalf("Fetch(A.A1) on an unset analog output = %v, want ErrInvalidAddress", v)
	}
}

func TestNewUVR613AppRejectsNonDloggMac(t *testing.T) {
	if _, err := newUVR613App([]fieldbus.MacDriver{nil}); err == nil {
		t.Fatal("expected a non-dlogg mac to be rejected")
	}
}

func TestNewDloggMacRejectsUnknownTransport(t *testing.T) {
	cfg := loadCfg(t, "transport: carrier-pigeon\n")
	if _, err := newDloggMac("line1", cfg); err == nil {
		t.Fatal("expected unknown transport to be rejected")
	}
}
