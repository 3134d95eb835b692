package dlogg

import "errors"

// Simulator is an in-memory stand-in for a D-LOGG gateway, modeled on
// the goroutine-and-channel device simulator used to test the
// engraving protocol: a background goroutine owns all mutable state
// and answers Read/Write requests delivered over channels, so the
// simulator is safe to drive from a test's goroutine exactly like a
// real Transport.
//
// It plays back a fixed script of the handshake and active-data
// exchange for one configured module type, mode, and sample set; it
// does not interpret requests, since the scripted sequence is exactly
// what Protocol is expected to send.
type Simulator struct {
	script []simStep
	pos    int

	close chan struct{}
	in    chan simRequest
	out   chan simResult
}

type simRequest struct {
	write bool
	data  []byte
}

type simResult struct {
	n   int
	err error
}

// simStep is one expected exchange: either the device expects a write
// of len(want) bytes (write == true; only the length is checked, not
// the contents), or it returns resp in answer to a read of len(resp)
// bytes (write == false).
type simStep struct {
	write bool
	want  []byte // outgoing bytes the script models, when write
	resp  []byte // bytes to return, when a read
}

// NewSimulator returns a Simulator that will answer the handshake with
// the given module type and mode, then serve samples in order, one per
// configured active-data slot.
func NewSimulator(mt ModuleType, mode byte, samples [][53]byte) *Simulator {
	s := &Simulator{
		script: buildScript(mt, mode, samples),
		close:  make(chan struct{}),
		in:     make(chan simRequest),
		out:    make(chan simResult),
	}
	go s.run()
	return s
}

func buildScript(mt ModuleType, mode byte, samples [][53]byte) []simStep {
	var acc Checksum
	track := func(b []byte) []byte {
		acc.update(b)
		return b
	}

	steps := []simStep{
		{write: true, want: track([]byte{0x20, 0x10, 0x18, 0, 0, 0, 0})},
		{write: true, want: []byte{byte(acc)}},
		{write: false, resp: []byte{0x21, 0x43}},
	}

	acc = 0
	body := track([]byte{mt.Type, mt.Firmware})
	steps = append(steps,
		simStep{write: false, resp: body},
		simStep{write: false, resp: []byte{byte(acc)}},
		simStep{write: true, want: []byte{0x21, 0x43}},
		simStep{write: false, resp: []byte{mode}},
		simStep{write: true, want: []byte{0x81}},
		simStep{write: false, resp: []byte{mode}},
		simStep{write: true, want: []byte{0xAB}},
	)

	acc = 0
	for _, sample := range samples {
		steps = append(steps,
			simStep{write: false, resp: track([]byte{DeviceUVR613})},
			simStep{write: false, resp: track(append([]byte(nil), sample[:]...))},
		)
	}
	steps = append(steps, simStep{write: false, resp: []byte{byte(acc)}})

	return steps
}

func (s *Simulator) run() {
	for {
		select {
		case <-s.close:
			s.close <- struct{}{}
			return
		case r := <-s.in:
			s.out <- s.handle(r)
		}
	}
}

func (s *Simulator) handle(r simRequest) simResult {
	if s.pos >= len(s.script) {
		return simResult{0, errors.New("dlogg: simulator: script exhausted")}
	}
	step := s.script[s.pos]
	if step.write != r.write {
		return simResult{0, errors.New("dlogg: simulator: unexpected read/write order")}
	}
	if r.write {
		if len(r.data) != len(step.want) {
			return simResult{0, errors.New("dlogg: simulator: unexpected write length")}
		}
		s.pos++
		return simResult{len(r.data), nil}
	}
	if len(r.data) != len(step.resp) {
		return simResult{0, errors.New("dlogg: simulator: unexpected read length")}
	}
	copy(r.data, step.resp)
	s.pos++
	return simResult{len(step.resp), nil}
}

func (s *Simulator) Read(data []byte) (int, error) {
	s.in <- simRequest{false, data}
	r := <-s.out
	return r.n, r.err
}

func (s *Simulator) Write(data []byte) (int, error) {
	s.in <- simRequest{true, data}
	r := <-s.out
	return r.n, r.err
}

func (s *Simulator) Close() error {
	s.close <- struct{}{}
	<-s.close
	return nil
}
