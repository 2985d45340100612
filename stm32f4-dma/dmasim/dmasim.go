// Package dmasim models the register file of one STM32F4 DMA controller so
// that code driving DMA streams can run under the host toolchain.
//
// Controller implements the register bus expected by package dma. Software
// accesses go through Load and Store and every Store is recorded. The
// hardware side of the engine is played by calling Complete, Fail, SetFlags
// and SwitchTarget, possibly from another goroutine.
package dmasim

import "sync"

// Controller register offsets, see RM0090 10.5.
const (
	LISR  = 0x00
	HISR  = 0x04
	LIFCR = 0x08
	HIFCR = 0x0C
)

// Stream register offsets, relative to the stream block. Use StreamReg to get
// the controller offset.
const (
	CR   = 0x00
	NDTR = 0x04
	PAR  = 0x08
	M0AR = 0x0C
	M1AR = 0x10
	FCR  = 0x14
)

// Control register bits the model acts on.
const (
	CR_EN  = 1 << 0
	CR_DBM = 1 << 18
	CR_CT  = 1 << 19
)

// Flag is a set of stream status flags, unshifted.
type Flag uint32

const (
	FlagFIFOError       Flag = 1 << 0
	FlagDirectModeError Flag = 1 << 2
	FlagTransferError   Flag = 1 << 3
	FlagHalfTransfer    Flag = 1 << 4
	FlagComplete        Flag = 1 << 5

	flagMask = FlagFIFOError | FlagDirectModeError | FlagTransferError | FlagHalfTransfer | FlagComplete
)

const (
	streamBase   = 0x10
	streamStride = 0x18
	numStreams   = 8
	numRegs      = (streamBase + numStreams*streamStride) / 4

	badStream = "dmasim: invalid stream index"
	badOffset = "dmasim: invalid register offset"
)

var flagShift = [4]uint32{0, 6, 16, 22}

// Write is one software store to the register file.
type Write struct {
	Offset uint32
	Value  uint32
}

// Controller is a simulated DMA controller. The zero value is a controller
// just out of reset. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	regs   [numRegs]uint32
	writes []Write
}

// New returns a controller just out of reset.
func New() *Controller {
	return &Controller{}
}

// StreamReg returns the controller offset of register reg of stream.
func StreamReg(stream uint8, reg uint32) uint32 {
	if stream >= numStreams {
		panic(badStream)
	}
	return streamBase + uint32(stream)*streamStride + reg
}

// Load reads a register. Clear registers read as zero.
func (c *Controller) Load(offset uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch offset {
	case LIFCR, HIFCR:
		return 0
	}
	return c.regs[index(offset)]
}

// Store writes a register the way software would and records the write.
//
// Status registers are read-only. Writing 1 to a bit of a clear register
// clears the matching status bit. While a stream is enabled the current
// target bit belongs to the hardware, and writing the address register of the
// buffer in use raises a transfer error and disables the stream.
func (c *Controller) Store(offset uint32, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, Write{Offset: offset, Value: value})
	switch offset {
	case LISR, HISR:
		return
	case LIFCR:
		c.regs[index(LISR)] &^= value
		return
	case HIFCR:
		c.regs[index(HISR)] &^= value
		return
	}
	stream, reg := split(offset)
	cr := c.regs[index(StreamReg(stream, CR))]
	enabled := cr&CR_EN != 0
	switch reg {
	case CR:
		if enabled {
			value = value&^CR_CT | cr&CR_CT
		}
	case M0AR, M1AR:
		inUse := uint32(M0AR)
		if cr&CR_CT != 0 {
			inUse = M1AR
		}
		if enabled && reg == inUse {
			c.raise(stream, FlagTransferError)
			c.regs[index(StreamReg(stream, CR))] &^= CR_EN
			return
		}
	}
	c.regs[index(offset)] = value
}

// Writes returns the stores recorded since the last ClearWrites.
func (c *Controller) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// ClearWrites forgets the recorded stores.
func (c *Controller) ClearWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = c.writes[:0]
}

// WritesTo returns the values stored to offset since the last ClearWrites,
// oldest first.
func (c *Controller) WritesTo(offset uint32) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var values []uint32
	for _, w := range c.writes {
		if w.Offset == offset {
			values = append(values, w.Value)
		}
	}
	return values
}

// Flags returns the status flags of stream.
func (c *Controller) Flags(stream uint8) Flag {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, shift := statusOf(stream)
	return Flag(c.regs[index(reg)]>>shift) & flagMask
}

// SetFlags sets status flags of stream as the hardware would. It does not
// record a write.
func (c *Controller) SetFlags(stream uint8, flags Flag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raise(stream, flags)
}

// Complete finishes the transfer on stream: the element counter drops to
// zero, the stream disables itself and the complete flag is set.
func (c *Controller) Complete(stream uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[index(StreamReg(stream, NDTR))] = 0
	c.regs[index(StreamReg(stream, CR))] &^= CR_EN
	c.raise(stream, FlagComplete|FlagHalfTransfer)
}

// Fail aborts the transfer on stream with a bus error: the stream disables
// itself and the transfer error flag is set.
func (c *Controller) Fail(stream uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[index(StreamReg(stream, CR))] &^= CR_EN
	c.raise(stream, FlagTransferError)
}

// SwitchTarget plays the end of one buffer of a double-buffered transfer:
// the current target bit flips, the complete flag is set and the element
// counter reloads. It reports false, and does nothing, unless the stream is
// enabled in double buffer mode.
func (c *Controller) SwitchTarget(stream uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cr := &c.regs[index(StreamReg(stream, CR))]
	if *cr&CR_EN == 0 || *cr&CR_DBM == 0 {
		return false
	}
	*cr ^= CR_CT
	c.raise(stream, FlagComplete|FlagHalfTransfer)
	return true
}

// Reg reads a register without side effects, including clear registers.
func (c *Controller) Reg(offset uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[index(offset)]
}

func (c *Controller) raise(stream uint8, flags Flag) {
	reg, shift := statusOf(stream)
	c.regs[index(reg)] |= uint32(flags&flagMask) << shift
}

func statusOf(stream uint8) (reg, shift uint32) {
	if stream >= numStreams {
		panic(badStream)
	}
	reg = LISR
	if stream >= 4 {
		reg = HISR
	}
	return reg, flagShift[stream%4]
}

func split(offset uint32) (stream uint8, reg uint32) {
	rel := offset - streamBase
	return uint8(rel / streamStride), rel % streamStride
}

func index(offset uint32) uint32 {
	if offset%4 != 0 || offset/4 >= numRegs {
		panic(badOffset)
	}
	return offset / 4
}
