package dlogg

import (
	"fmt"
	"time"

	"periph.io/x/d2xx"

	"dloggcsv.dev/logging"
	"dloggcsv.dev/value"
)

const (
	ftdiBaudRate  = 115200
	ftdiRetries   = 20
	ftdiPollDelay = 100 * time.Microsecond
)

// ftdiPort talks to the D-LOGG gateway directly over libftdi's D2XX
// protocol, bypassing the kernel's ftdi_sio tty driver entirely.
type ftdiPort struct {
	h d2xx.Handle
}

// OpenFTDI opens the devNr'th FTDI device (1-based, matching the
// configuration directive's numbering) or, if devNr is 0, the first
// device that responds to enumeration.
func OpenFTDI(devNr int) (Transport, error) {
	num, errno := d2xx.CreateDeviceInfoList()
	if errno != 0 {
		return nil, fmt.Errorf("dlogg: ftdi: enumerate devices: %s", errno)
	}
	if num == 0 {
		return nil, fmt.Errorf("dlogg: ftdi: no devices enumerated: %w", value.ErrDeviceNotFound)
	}

	idx := devNr - 1
	if devNr == 0 {
		idx = 0
		if num > 1 {
			logging.Warn().Int("devices", num).Msg("multiple FTDI devices found and device-nr unset, using the first one")
		}
	}
	if idx < 0 || idx >= num {
		return nil, fmt.Errorf("dlogg: ftdi: device index %d of %d available: %w", devNr, num, value.ErrDeviceNotFound)
	}

	h, errno := d2xx.Open(idx)
	if errno != 0 {
		return nil, fmt.Errorf("dlogg: ftdi: open device %d: %s", devNr, errno)
	}
	p := &ftdiPort{h: h}
	if err := p.configure(); err != nil {
		h.Close()
		return nil, err
	}
	return p, nil
}

func (p *ftdiPort) configure() error {
	if errno := p.h.SetBaudRate(ftdiBaudRate); errno != 0 {
		return fmt.Errorf("dlogg: ftdi: set baud rate: %s", errno)
	}
	if errno := p.h.SetLineProperty(8, 1, 0); errno != 0 {
		return fmt.Errorf("dlogg: ftdi: set line property: %s", errno)
	}
	if errno := p.h.SetDTR(true); errno != 0 {
		return fmt.Errorf("dlogg: ftdi: set dtr: %s", errno)
	}
	if errno := p.h.SetRTS(false); errno != 0 {
		return fmt.Errorf("dlogg: ftdi: clear rts: %s", errno)
	}
	return nil
}

// Read blocks until len(b) bytes have arrived or the poll budget is
// exhausted, mirroring the original FTDI MAC's nanosleep-then-poll
// loop: sleep for the time the transfer should nominally take, then
// poll the transfer status up to ftdiRetries times.
func (p *ftdiPort) Read(b []byte) (int, error) {
	nominal := time.Duration(len(b)*8) * time.Second / ftdiBaudRate
	time.Sleep(nominal)

	var total int
	var errno d2xx.Err
	for retry := 0; retry < ftdiRetries; retry++ {
		var n int
		n, errno = p.h.Read(b[total:])
		if errno != 0 {
			return total, fmt.Errorf("dlogg: ftdi: read: %s", errno)
		}
		total += n
		if total >= len(b) {
			return total, nil
		}
		time.Sleep(ftdiPollDelay)
	}
	return total, fmt.Errorf("dlogg: ftdi: read %d of %d bytes: %w", total, len(b), value.ErrTimeout)
}

func (p *ftdiPort) Write(b []byte) (int, error) {
	n, errno := p.h.Write(b)
	if errno != 0 {
		return n, fmt.Errorf("dlogg: ftdi: write: %s", errno)
	}
	return n, nil
}

func (p *ftdiPort) Close() error {
	if errno := p.h.Close(); errno != 0 {
		return fmt.Errorf("dlogg: ftdi: close: %s", errno)
	}
	return nil
}
