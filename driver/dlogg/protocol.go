package dlogg

import (
	"fmt"
	"time"

	"dloggcsv.dev/value"
)

// Module type codes returned by the module-type request.
const (
	ModTypeBLNet    byte = 0xA3
	ModTypeDLogg1DL byte = 0xA8
	ModTypeDLogg2DL byte = 0xD1
)

// Operational mode codes returned by the module-mode request.
const (
	Mode1DL   byte = 0xA8
	Mode2DL   byte = 0xD1
	ModeCAN   byte = 0xDC
	ModeBackup byte = 0xA2
)

// Device codes identifying the kind of sample present in an
// active-data frame slot.
const (
	DeviceUVR613 byte = 0x90
	DeviceNone   byte = 0xAB
)

// minFirmwareDLogg is the lowest firmware version a DLOGG-1DL or
// DLOGG-2DL module must report to be considered supported; BL-Net is
// exempt from this gate.
const minFirmwareDLogg = 29

// ModuleType identifies the connected gateway hardware and its
// firmware revision.
type ModuleType struct {
	Type     byte
	Firmware byte
}

// Metadata is the negotiated state of one communication line: which
// gateway is attached and which operational mode it is running in.
type Metadata struct {
	ModuleType ModuleType
	Mode       byte
}

// Sample is one raw active-data slot as read off the wire, not yet
// decoded into physical values.
type Sample struct {
	DeviceID byte
	Data     [53]byte
}

// maxSamplesPerFrame bounds the active-data frame: 1DL mode reports
// one slot, 2DL mode reports two.
const maxSamplesPerFrame = 2

// Protocol drives the current-data handshake and active-data fetch
// over a single Transport, corresponding to one configured line.
type Protocol struct {
	t        Transport
	metadata Metadata
	samples  []Sample
}

// NewProtocol returns a Protocol bound to t. Sync must be called
// before Metadata or Samples return meaningful data.
func NewProtocol(t Transport) *Protocol {
	return &Protocol{t: t}
}

// Sync fetches the line's meta-data and then its active-data frame,
// replacing any previously buffered state only on full success —
// a failed Sync leaves the previous Metadata/Samples intact.
func (p *Protocol) Sync() error {
	md, err := p.fetchMetadata()
	if err != nil {
		return err
	}
	samples, err := p.fetchCurrentData(md)
	if err != nil {
		return err
	}
	p.metadata = md
	p.samples = samples
	return nil
}

// Metadata returns the line's most recently synced meta-data.
func (p *Protocol) Metadata() Metadata { return p.metadata }

// Sample returns the i'th active-data slot from the most recent Sync.
func (p *Protocol) Sample(i int) (Sample, bool) {
	if i < 0 || i >= len(p.samples) {
		return Sample{}, false
	}
	return p.samples[i], true
}

// SampleCount returns the number of active-data slots from the most
// recent Sync.
func (p *Protocol) SampleCount() int { return len(p.samples) }

// Close releases the underlying transport.
func (p *Protocol) Close() error { return p.t.Close() }

func (p *Protocol) fetchMetadata() (Metadata, error) {
	modType, err := p.fetchModuleType()
	if err != nil {
		return Metadata{}, err
	}
	if _, err := p.fetchOperationMode(); err != nil {
		return Metadata{}, err
	}
	mode, err := p.fetchModuleMode()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{ModuleType: modType, Mode: mode}, nil
}

func (p *Protocol) fetchModuleType() (ModuleType, error) {
	var acc Checksum
	req := []byte{0x20, 0x10, 0x18, 0, 0, 0, 0}
	if err := Send(p.t, req, &acc); err != nil {
		return ModuleType{}, err
	}
	if err := SendChecksum(p.t, acc); err != nil {
		return ModuleType{}, err
	}

	var ack [2]byte
	if err := Read(p.t, ack[:], nil); err != nil {
		return ModuleType{}, err
	}
	switch {
	case ack[0] == 0xFF && ack[1] == 0x00:
		return ModuleType{}, fmt.Errorf("dlogg: logger rejected module-type request: %w", value.ErrIO)
	case ack[0] != 0x21 || ack[1] != 0x43:
		return ModuleType{}, fmt.Errorf("dlogg: unexpected module-type ack %#x %#x: %w", ack[0], ack[1], value.ErrInvalidResponse)
	}

	acc = 0
	var raw [2]byte
	if err := Read(p.t, raw[:], &acc); err != nil {
		return ModuleType{}, err
	}
	if err := ReadChecksum(p.t, acc); err != nil {
		return ModuleType{}, err
	}
	return ModuleType{Type: raw[0], Firmware: raw[1]}, nil
}

// fetchOperationMode issues the "second byte from winsol
// communication" request; its result is not retained (the original
// protocol immediately supersedes it with fetchModuleMode) but the
// request must still be sent to keep the gateway's internal state
// machine synchronized.
func (p *Protocol) fetchOperationMode() (byte, error) {
	coffeeBreak()
	req := []byte{0x21, 0x43}
	if err := Send(p.t, req, nil); err != nil {
		return 0, err
	}
	var mode [1]byte
	if err := Read(p.t, mode[:], nil); err != nil {
		return 0, err
	}
	return mode[0], nil
}

func (p *Protocol) fetchModuleMode() (byte, error) {
	coffeeBreak()
	req := []byte{0x81}
	if err := Send(p.t, req, nil); err != nil {
		return 0, err
	}
	var mode [1]byte
	if err := Read(p.t, mode[:], nil); err != nil {
		return 0, err
	}
	return mode[0], nil
}

// coffeeBreak pauses briefly before a mode query; the gateway produces
// no response otherwise.
func coffeeBreak() {
	time.Sleep(10 * time.Millisecond)
}

// checkModuleMode validates that a line's negotiated module type and
// operational mode are a supported, mutually consistent combination.
//
// This is the corrected form of the gate: DLOGG-1DL and DLOGG-2DL
// require firmware >= minFirmwareDLogg; BL-Net carries no firmware
// floor.
func checkModuleMode(md Metadata) error {
	if md.Mode != Mode1DL && md.Mode != Mode2DL {
		return fmt.Errorf("dlogg: unsupported operational mode %#x: %w", md.Mode, value.ErrInvalidResponse)
	}
	switch md.ModuleType.Type {
	case ModTypeBLNet:
	case ModTypeDLogg1DL, ModTypeDLogg2DL:
		if md.ModuleType.Firmware < minFirmwareDLogg {
			return fmt.Errorf("dlogg: unsupported firmware version %d: %w", md.ModuleType.Firmware, value.ErrInvalidResponse)
		}
	default:
		return fmt.Errorf("dlogg: unsupported module type %#x: %w", md.ModuleType.Type, value.ErrInvalidResponse)
	}
	if md.ModuleType.Type == ModTypeDLogg1DL && md.Mode != Mode1DL {
		return fmt.Errorf("dlogg: module type DLOGG-1DL does not use 1DL mode: %w", value.ErrInvalidResponse)
	}
	if md.ModuleType.Type == ModTypeDLogg2DL && md.Mode != Mode2DL {
		return fmt.Errorf("dlogg: module type DLOGG-2DL does not use 2DL mode: %w", value.ErrInvalidResponse)
	}
	return nil
}

func sampleCount(md Metadata) (int, error) {
	switch md.Mode {
	case Mode1DL:
		return 1, nil
	case Mode2DL:
		return 2, nil
	default:
		return 0, fmt.Errorf("dlogg: sample count undefined for mode %#x: %w", md.Mode, value.ErrInvalidResponse)
	}
}

func (p *Protocol) fetchCurrentData(md Metadata) ([]Sample, error) {
	if err := checkModuleMode(md); err != nil {
		return nil, err
	}

	if err := Send(p.t, []byte{0xAB}, nil); err != nil {
		return nil, err
	}

	n, err := sampleCount(md)
	if err != nil {
		return nil, err
	}

	staged := make([]Sample, 0, n)
	var acc Checksum
	for i := 0; i < n; i++ {
		var deviceID [1]byte
		if err := Read(p.t, deviceID[:], &acc); err != nil {
			return nil, err
		}
		switch {
		case deviceID[0] == DeviceUVR613 && md.ModuleType.Firmware >= minFirmwareDLogg:
			// sample_type = UVR61_3_v14
		default:
			return nil, fmt.Errorf("dlogg: unsupported device id %#x in slot %d: %w", deviceID[0], i, value.ErrInvalidResponse)
		}
		var data [53]byte
		if err := Read(p.t, data[:], &acc); err != nil {
			return nil, err
		}
		staged = append(staged, Sample{DeviceID: deviceID[0], Data: data})
	}

	if err := ReadChecksum(p.t, acc); err != nil {
		return nil, err
	}

	// Only committed to the caller once the trailing checksum has
	// verified; a failed verification must not leave partial data
	// visible.
	return staged, nil
}
