//go:build linux

package dlogg

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/sys/unix"
)

const (
	ttyBaudRate    = 115200
	ttyReadTimeout = 2 * time.Second
)

// ttyPort wraps a tarm/serial port with explicit DTR/RTS control.
// tarm/serial exposes only baud rate, word size, and timeout
// configuration and keeps its underlying file descriptor unexported,
// so modem-line control is done through a second, short-lived open of
// the same device path purely to issue the ioctls; the serial port's
// line state is a property of the hardware, not of either file
// descriptor, so it persists after the auxiliary descriptor is closed.
type ttyPort struct {
	*serial.Port
}

// OpenTTY opens the D-LOGG gateway's serial line. If dev is empty, the
// usual Linux device-name candidates are tried in turn and the first
// one that opens successfully is used.
func OpenTTY(dev string) (Transport, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		devices = append(devices, "/dev/ttyUSB0", "/dev/ttyUSB1")
	}

	var firstErr error
	for _, d := range devices {
		cfg := &serial.Config{
			Name:        d,
			Baud:        ttyBaudRate,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: ttyReadTimeout,
		}
		port, err := serial.OpenPort(cfg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := setModemLines(d, true, false); err != nil {
			port.Close()
			return nil, fmt.Errorf("dlogg: tty: %w", err)
		}
		return &ttyPort{Port: port}, nil
	}
	return nil, firstErr
}

// setModemLines asserts or deasserts the DTR and RTS modem control
// lines on the device at path dev via the same TIOCMBIS/TIOCMBIC
// ioctls a raw termios implementation would use, since tarm/serial
// does not expose modem-line control.
func setModemLines(dev string, dtr, rts bool) error {
	fd, err := unix.Open(dev, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("open %s for modem control: %w", dev, err)
	}
	defer unix.Close(fd)

	var set, clear int
	if dtr {
		set |= unix.TIOCM_DTR
	} else {
		clear |= unix.TIOCM_DTR
	}
	if rts {
		set |= unix.TIOCM_RTS
	} else {
		clear |= unix.TIOCM_RTS
	}
	if set != 0 {
		if err := unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, set); err != nil {
			return err
		}
	}
	if clear != 0 {
		if err := unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, clear); err != nil {
			return err
		}
	}
	return nil
}
