package dma

import "unsafe"

// Transfer is a running single-buffer memory-to-peripheral transfer. It owns
// its stream until Wait or Reset hands the stream back.
//
// The source buffer is read by the hardware for the whole life of the
// transfer and must not be modified until the stream has been handed back.
type Transfer struct {
	stream *Stream
	// Keeps the source buffer reachable while the hardware reads it.
	source unsafe.Pointer
}

// Start configures s to copy source, one element per request, to the data
// register of the peripheral in req, and enables the stream. On success the
// stream is checked out into the returned transfer.
//
// The element width of S and of the peripheral must be 1, 2 or 4 bytes and
// source must hold between 1 and 65535 elements. Nothing is written to the
// stream registers if any check fails.
func Start[S any](s *Stream, req Request, source []S) (*Transfer, error) {
	return startSingle(s, req, source, false)
}

// StartCircular is like Start but the hardware reloads the element counter at
// the end of source and starts over. The transfer only ends on Reset or on an
// error.
func StartCircular[S any](s *Stream, req Request, source []S) (*Transfer, error) {
	return startSingle(s, req, source, true)
}

func startSingle[S any](s *Stream, req Request, source []S, circular bool) (*Transfer, error) {
	var zero S
	cc, err := s.prepare(req, unsafe.Sizeof(zero), len(source))
	if err != nil {
		return nil, err
	}
	cc.setCircular(circular)
	s.store(regCR, cc.CR)
	s.store(regM0AR, bufferAddr(source))
	s.store(regNDTR, uint32(len(source)))
	s.store(regPAR, req.periph.Addr())
	// memfence
	s.enable(cc)
	return &Transfer{stream: s, source: unsafe.Pointer(unsafe.SliceData(source))}, nil
}

// IsComplete reports the transfer-complete flag. It does not block.
func (t *Transfer) IsComplete() bool {
	return t.live().isComplete()
}

// HasError reports whether the hardware flagged a transfer error.
func (t *Transfer) HasError() bool {
	return t.live().hasError()
}

// IsHalfComplete reports the half-transfer flag.
func (t *Transfer) IsHalfComplete() bool {
	return t.live().flags()&flagHT != 0
}

// Remaining returns the number of elements not yet transferred.
func (t *Transfer) Remaining() uint16 {
	return t.live().remaining()
}

// Listen enables the interrupt for event on the running transfer.
func (t *Transfer) Listen(event Event) {
	t.live().listen(event, true)
}

// Unlisten disables the interrupt for event on the running transfer.
func (t *Transfer) Unlisten(event Event) {
	t.live().listen(event, false)
}

// Wait busy-polls until the transfer completes or fails, resets the stream
// and returns it. The error is ErrTransfer if the hardware flagged an error.
// Wait has no timeout; a circular transfer never completes.
func (t *Transfer) Wait() (*Stream, error) {
	s := t.live()
	for !s.isComplete() && !s.hasError() {
	}
	if s.isComplete() {
		return t.Reset(), nil
	}
	return t.Reset(), ErrTransfer
}

// Reset stops the transfer, clears the stream flags and returns the stream,
// idle and ready to be configured again.
func (t *Transfer) Reset() *Stream {
	s := t.live()
	s.reset()
	s.checkedOut = false
	t.stream = nil
	t.source = nil
	return s
}

func (t *Transfer) live() *Stream {
	if t.stream == nil {
		panic(badFinishedTransfer)
	}
	return t.stream
}

// prepare validates a memory-to-peripheral configuration for s and returns
// the control register value to commit, with the stream still disabled.
// It performs no register writes.
func (s *Stream) prepare(req Request, memWidth uintptr, n int) (streamConfig, error) {
	var cc streamConfig
	if s.checkedOut {
		return cc, ErrStreamBusy
	}
	if !req.matches(s) {
		return cc, ErrRequestMismatch
	}
	msize, ok := dataSizeOf(memWidth)
	if !ok {
		return cc, ErrUnsupportedWidth
	}
	psize, ok := dataSizeOf(uintptr(req.periph.Width()))
	if !ok {
		return cc, ErrUnsupportedWidth
	}
	if n <= 0 || n > maxTransferCount {
		return cc, ErrBufferLength
	}
	cc.CR = s.load(regCR)
	if cc.CR&crEN != 0 {
		return cc, ErrStreamEnabled
	}
	cc.setMemorySize(msize)
	cc.setPeripheralSize(psize)
	cc.setMemoryIncrement(true)
	cc.setPeripheralIncrement(false)
	cc.setDirection(dirMemToPeriph)
	cc.setPeripheralFlowControl(false)
	cc.setChannel(req.channel)
	cc.setCircular(false)
	cc.setDoubleBuffer(false)
	cc.setCurrentTarget(0)
	cc.setEnable(false)
	return cc, nil
}

// enable commits cc with the enable bit set and checks the stream out. The
// hardware may start consuming as soon as this write lands, so every other
// register must already be written.
func (s *Stream) enable(cc streamConfig) {
	cc.setEnable(true)
	s.store(regCR, cc.CR)
	s.checkedOut = true
}

// bufferAddr returns the bus address of the first element of buf.
func bufferAddr[S any](buf []S) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}
