package dma

import "unsafe"

// DoubleBuffer is a running double-buffered memory-to-peripheral transfer.
// The hardware drains one buffer while the other one is refilled, switching
// between them without a gap and without stopping.
//
// The hardware reports which buffer it is reading in the current-target bit
// of the control register. Poll compares that bit against the value it saw
// last: a change means the hardware has moved on and the other buffer is no
// longer read, so only that buffer is ever handed out for refilling.
type DoubleBuffer[S any] struct {
	stream  *Stream
	buffers [2][]S
	// Current target last observed by Poll.
	target uint8
}

// StartDoubleBuffered configures s for a continuous double-buffered transfer
// of source0 and source1 to the peripheral in req, starting with source0, and
// enables the stream.
//
// Both buffers must have the same length; ErrLengthMismatch is returned
// otherwise, and nothing is written to the stream registers.
func StartDoubleBuffered[S any](s *Stream, req Request, source0, source1 []S) (*DoubleBuffer[S], error) {
	if len(source0) != len(source1) {
		return nil, ErrLengthMismatch
	}
	var zero S
	cc, err := s.prepare(req, unsafe.Sizeof(zero), len(source0))
	if err != nil {
		return nil, err
	}
	cc.setCircular(true)
	cc.setDoubleBuffer(true)
	cc.setCurrentTarget(0)
	s.store(regCR, cc.CR)
	s.store(regM0AR, bufferAddr(source0))
	s.store(regM1AR, bufferAddr(source1))
	s.store(regNDTR, uint32(len(source0)))
	s.store(regPAR, req.periph.Addr())
	// memfence
	s.enable(cc)
	return &DoubleBuffer[S]{
		stream:  s,
		buffers: [2][]S{source0, source1},
	}, nil
}

// Poll checks the transfer once and never blocks.
//
// If the hardware flagged an error the stream is reset and returned together
// with ErrTransfer; replace is not called and the transfer is finished.
//
// If the hardware switched buffers since the last call, replace is called
// with the buffer it just vacated and must return the buffer to transmit in
// its place, of the same length (it may return the vacated buffer refilled).
// Only the address register of the vacated buffer is rewritten. A
// replacement of a different length panics.
//
// Otherwise Poll does nothing and writes no register. In both cases it
// returns a nil stream and a nil error and the transfer keeps running.
//
// Poll must be called at least once per buffer drain interval. If it is not,
// the hardware may wrap onto a buffer whose replacement has not been
// installed and transmit it again.
func (t *DoubleBuffer[S]) Poll(replace func(vacated []S) []S) (*Stream, error) {
	s := t.live()
	if s.hasError() {
		return t.Reset(), ErrTransfer
	}
	current := s.currentTarget()
	if current == t.target {
		return nil, nil
	}
	vacated := 1 - current
	next := replace(t.buffers[vacated])
	if len(next) != len(t.buffers[vacated]) {
		panic(badReplacementLength)
	}
	t.buffers[vacated] = next
	if vacated == 0 {
		s.store(regM0AR, bufferAddr(next))
	} else {
		s.store(regM1AR, bufferAddr(next))
	}
	t.target = current
	return nil, nil
}

// Target returns the buffer, 0 or 1, the hardware was reading at the last
// Poll.
func (t *DoubleBuffer[S]) Target() uint8 {
	t.live()
	return t.target
}

// Buffers returns the two buffers currently installed.
func (t *DoubleBuffer[S]) Buffers() (source0, source1 []S) {
	t.live()
	return t.buffers[0], t.buffers[1]
}

// HasError reports whether the hardware flagged a transfer error.
func (t *DoubleBuffer[S]) HasError() bool {
	return t.live().hasError()
}

// Remaining returns the number of elements left in the buffer being read.
func (t *DoubleBuffer[S]) Remaining() uint16 {
	return t.live().remaining()
}

// Listen enables the interrupt for event on the running transfer.
func (t *DoubleBuffer[S]) Listen(event Event) {
	t.live().listen(event, true)
}

// Unlisten disables the interrupt for event on the running transfer.
func (t *DoubleBuffer[S]) Unlisten(event Event) {
	t.live().listen(event, false)
}

// Reset stops the transfer, clears the stream flags and returns the stream,
// idle and ready to be configured again.
func (t *DoubleBuffer[S]) Reset() *Stream {
	s := t.live()
	s.reset()
	s.checkedOut = false
	t.stream = nil
	t.buffers = [2][]S{}
	return s
}

func (t *DoubleBuffer[S]) live() *Stream {
	if t.stream == nil {
		panic(badFinishedTransfer)
	}
	return t.stream
}
