// Package dlogg implements the D-LOGG MAC transport (tty and FTDI
// backends) and the current-data protocol layered on top of it.
package dlogg

import (
	"fmt"
	"io"

	"dloggcsv.dev/value"
)

// Transport is the common shape every MAC backend presents to the
// protocol layer: a byte stream with bounded-time reads. Backends
// differ in how they open and configure the underlying line, not in
// how the protocol talks to them afterward.
type Transport interface {
	io.ReadWriteCloser
}

// Checksum accumulates an 8-bit running sum over every byte that
// crosses the wire within one frame. It resets to zero at frame
// boundaries, matching the device's own checksum discipline.
type Checksum byte

// update folds data into the accumulator in place.
func (c *Checksum) update(data []byte) {
	for _, b := range data {
		*c += Checksum(b)
	}
}

// Reset zeroes the accumulator, starting a new frame.
func (c *Checksum) Reset() { *c = 0 }

// Send writes buf to t and folds it into acc. acc may be nil, in which
// case no checksum is tracked (used for the trailing checksum byte
// itself, which is never folded into itself).
func Send(t Transport, buf []byte, acc *Checksum) error {
	if err := writeFull(t, buf); err != nil {
		return fmt.Errorf("dlogg: send: %w", errIO(err))
	}
	if acc != nil {
		acc.update(buf)
	}
	return nil
}

// writeFull writes buf in its entirety, looping as needed the same way
// io.ReadFull loops on the read side; io.Writer does not guarantee a
// single call drains buf.
func writeFull(t Transport, buf []byte) error {
	for len(buf) > 0 {
		n, err := t.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// Read fills buf entirely from t and folds it into acc. acc may be
// nil.
func Read(t Transport, buf []byte, acc *Checksum) error {
	if _, err := io.ReadFull(t, buf); err != nil {
		return fmt.Errorf("dlogg: read: %w", errIO(err))
	}
	if acc != nil {
		acc.update(buf)
	}
	return nil
}

// SendChecksum transmits the frame's trailing checksum byte: the
// accumulator's current value, sent without folding it into itself.
func SendChecksum(t Transport, acc Checksum) error {
	return Send(t, []byte{byte(acc)}, nil)
}

// ReadChecksum reads the frame's trailing checksum byte and compares
// it against acc, the checksum accumulated over the frame so far. A
// mismatch is reported as value.ErrInvalidResponse.
func ReadChecksum(t Transport, acc Checksum) error {
	var buf [1]byte
	if err := Read(t, buf[:], nil); err != nil {
		return err
	}
	if Checksum(buf[0]) != acc {
		return fmt.Errorf("dlogg: checksum mismatch: got %#x, want %#x: %w", buf[0], byte(acc), value.ErrInvalidResponse)
	}
	return nil
}

func errIO(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return value.ErrTimeout
	}
	return value.ErrIO
}
