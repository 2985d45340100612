package dma

// Event selects a stream interrupt source. Enabling an event only gates the
// interrupt line; the hardware sets the matching status flag regardless.
type Event uint8

const (
	HalfTransfer Event = iota
	TransferComplete
)

func (e Event) crPos() uint32 {
	switch e {
	case HalfTransfer:
		return crHTIE_Pos
	case TransferComplete:
		return crTCIE_Pos
	}
	panic(badEvent)
}

// Stream is one of the eight independent sub-engines of a DMA controller.
//
// A stream is either idle, and may be configured through its methods, or
// checked out into exactly one live transfer. While checked out only the
// transfer may touch the stream's registers; calling a register-touching
// Stream method panics.
type Stream struct {
	ctrl       *Controller
	index      uint8
	checkedOut bool
}

// Controller returns the controller the stream belongs to.
func (s *Stream) Controller() *Controller { return s.ctrl }

// Index returns the stream number, 0 to 7.
func (s *Stream) Index() uint8 { return s.index }

// IsCheckedOut reports whether a live transfer owns the stream.
func (s *Stream) IsCheckedOut() bool { return s.checkedOut }

// TryClaim claims the stream for use by a driver and reports whether it
// succeeded. Claiming is bookkeeping only; it does not touch registers.
func (s *Stream) TryClaim() bool {
	if s.IsClaimed() {
		return false
	}
	s.ctrl.claimedMask |= 1 << s.index
	return true
}

// Claim claims the stream without checking whether it was already claimed.
func (s *Stream) Claim() {
	s.ctrl.claimedMask |= 1 << s.index
}

// Unclaim releases the stream for other drivers.
func (s *Stream) Unclaim() {
	s.ctrl.claimedMask &^= 1 << s.index
}

// IsClaimed returns true if the stream is claimed.
func (s *Stream) IsClaimed() bool {
	return s.ctrl.claimedMask&(1<<s.index) != 0
}

// Listen enables the interrupt for event.
func (s *Stream) Listen(event Event) {
	s.mustIdle()
	s.listen(event, true)
}

// Unlisten disables the interrupt for event.
func (s *Stream) Unlisten(event Event) {
	s.mustIdle()
	s.listen(event, false)
}

// IsComplete reports the transfer-complete flag.
func (s *Stream) IsComplete() bool {
	s.mustIdle()
	return s.isComplete()
}

// HasError reports whether a transfer error (bus fault) or direct mode error
// (overrun/underrun) flag is set.
func (s *Stream) HasError() bool {
	s.mustIdle()
	return s.hasError()
}

// IsHalfComplete reports the half-transfer flag.
func (s *Stream) IsHalfComplete() bool {
	s.mustIdle()
	return s.flags()&flagHT != 0
}

// IsEnabled reports the stream enable bit.
func (s *Stream) IsEnabled() bool {
	s.mustIdle()
	return s.isEnabled()
}

// Remaining returns the number of elements left in the current transfer.
func (s *Stream) Remaining() uint16 {
	s.mustIdle()
	return s.remaining()
}

// SetPriority sets the arbitration priority used by the next transfer.
func (s *Stream) SetPriority(pl Priority) error {
	s.mustIdle()
	if s.isEnabled() {
		return ErrStreamEnabled
	}
	var cc streamConfig
	cc.CR = s.load(regCR)
	cc.setPriority(pl & 0x3)
	s.store(regCR, cc.CR)
	return nil
}

// Reset disables the stream, stopping any transfer in flight, and clears its
// status flags. It must be called before reconfiguring a used stream.
func (s *Stream) Reset() {
	s.mustIdle()
	s.reset()
}

func (s *Stream) mustIdle() {
	if s.checkedOut {
		panic(badCheckedOut)
	}
}

func (s *Stream) listen(event Event, enable bool) {
	var cc streamConfig
	cc.CR = s.load(regCR)
	setBitPos(&cc.CR, event.crPos(), enable)
	s.store(regCR, cc.CR)
}

func (s *Stream) isComplete() bool {
	return s.flags()&flagTC != 0
}

func (s *Stream) hasError() bool {
	return s.flags()&(flagTE|flagDME) != 0
}

func (s *Stream) isEnabled() bool {
	return s.load(regCR)&crEN != 0
}

func (s *Stream) currentTarget() uint8 {
	if s.load(regCR)&crCT != 0 {
		return 1
	}
	return 0
}

func (s *Stream) remaining() uint16 {
	return uint16(s.load(regNDTR))
}

func (s *Stream) reset() {
	var cc streamConfig
	cc.CR = s.load(regCR)
	cc.setEnable(false)
	s.store(regCR, cc.CR)
	s.clearFlags()
}

// flags returns this stream's status bits, shifted down to flagXX positions.
func (s *Stream) flags() uint32 {
	isr := s.ctrl.bus.Load(s.statusReg())
	return (isr >> s.flagShift()) & flagAll
}

func (s *Stream) clearFlags() {
	s.ctrl.bus.Store(s.clearReg(), (flagTC|flagTE|flagDME|flagHT)<<s.flagShift())
}

// group returns 0 for streams 0-3, which report through LISR/LIFCR, and 1
// for streams 4-7 (HISR/HIFCR).
func (s *Stream) group() uint8 {
	return s.index / streamsPerStatusGroup
}

func (s *Stream) statusReg() uint32 {
	if s.group() == 0 {
		return regLISR
	}
	return regHISR
}

func (s *Stream) clearReg() uint32 {
	if s.group() == 0 {
		return regLIFCR
	}
	return regHIFCR
}

func (s *Stream) flagShift() uint32 {
	return flagShift[s.index%streamsPerStatusGroup]
}

// offset returns the controller offset of one of this stream's registers.
func (s *Stream) offset(reg uint32) uint32 {
	return streamBase + uint32(s.index)*streamStride + reg
}

func (s *Stream) load(reg uint32) uint32 {
	return s.ctrl.bus.Load(s.offset(reg))
}

func (s *Stream) store(reg, value uint32) {
	s.ctrl.bus.Store(s.offset(reg), value)
}
