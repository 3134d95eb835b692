package dlogg

import "testing"

func uvr613Sample(b byte) [53]byte {
	var d [53]byte
	for i := range d {
		d[i] = b
	}
	return d
}

func TestSyncSingleLine1DL(t *testing.T) {
	sim := NewSimulator(ModuleType{Type: ModTypeBLNet, Firmware: 100}, Mode1DL, [][53]byte{uvr613Sample(0x11)})
	defer sim.Close()

	p := NewProtocol(sim)
	if err := p.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	md := p.Metadata()
	if md.ModuleType.Type != ModTypeBLNet || md.Mode != Mode1DL {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	s, ok := p.Sample(0)
	if !ok {
		t.Fatal("Sample(0) missing")
	}
	if s.DeviceID != DeviceUVR613 || s.Data[0] != 0x11 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if _, ok := p.Sample(1); ok {
		t.Fatal("Sample(1) should not exist in 1DL mode")
	}
}

func TestSyncTwoLines2DL(t *testing.T) {
	sim := NewSimulator(ModuleType{Type: ModTypeDLogg2DL, Firmware: 30}, Mode2DL,
		[][53]byte{uvr613Sample(0x01), uvr613Sample(0x02)})
	defer sim.Close()

	p := NewProtocol(sim)
	if err := p.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for i, want := range []byte{0x01, 0x02} {
		s, ok := p.Sample(i)
		if !ok {
			t.Fatalf("Sample(%d) missing", i)
		}
		if s.Data[0] != want {
			t.Fatalf("Sample(%d).Data[0] = %#x, want %#x", i, s.Data[0], want)
		}
	}
}

func TestCheckModuleModeRejectsLowFirmware(t *testing.T) {
	md := Metadata{ModuleType: ModuleType{Type: ModTypeDLogg1DL, Firmware: 28}, Mode: Mode1DL}
	if err := checkModuleMode(md); err == nil {
		t.Fatal("expected firmware gate to reject firmware 28")
	}
}

func TestCheckModuleModeAcceptsBLNetRegardlessOfFirmware(t *testing.T) {
	md := Metadata{ModuleType: ModuleType{Type: ModTypeBLNet, Firmware: 0}, Mode: Mode1DL}
	if err := checkModuleMode(md); err != nil {
		t.Fatalf("BL-Net should not be firmware-gated: %v", err)
	}
}

func TestCheckModuleModeRejectsMismatchedMode(t *testing.T) {
	md := Metadata{ModuleType: ModuleType{Type: ModTypeDLogg1DL, Firmware: 30}, Mode: Mode2DL}
	if err := checkModuleMode(md); err == nil {
		t.Fatal("expected mode mismatch to be rejected")
	}
}

func TestSampleCount(t *testing.T) {
	if n, err := sampleCount(Metadata{Mode: Mode1DL}); err != nil || n != 1 {
		t.Fatalf("sampleCount(1DL) = %d, %v", n, err)
	}
	if n, err := sampleCount(Metadata{Mode: Mode2DL}); err != nil || n != 2 {
		t.Fatalf("sampleCount(2DL) = %d, %v", n, err)
	}
	if _, err := sampleCount(Metadata{Mode: ModeCAN}); err == nil {
		t.Fatal("expected CAN mode to be rejected")
	}
}
