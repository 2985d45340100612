// Package dma drives the memory-to-peripheral paths of the STM32F4 DMA
// controllers: one-shot and circular single-buffer transfers and
// double-buffered continuous transfers.
package dma

import "errors"

// Bus gives access to the register window of one DMA controller. Offsets are
// byte offsets from the controller base address.
//
// On the STM32F4 it is implemented over memory-mapped IO; on the host
// dmasim.Controller implements it.
type Bus interface {
	Load(offset uint32) uint32
	Store(offset uint32, value uint32)
}

// ControllerID identifies DMA1 or DMA2.
type ControllerID uint8

const (
	Controller1 ControllerID = 1
	Controller2 ControllerID = 2
)

// DMA errors.
var (
	ErrTransfer          = errors.New("dma: transfer error")
	ErrUnsupportedWidth  = errors.New("dma: unsupported element width")
	ErrLengthMismatch    = errors.New("dma: double buffers differ in length")
	ErrBufferLength      = errors.New("dma: buffer length out of range")
	ErrStreamEnabled     = errors.New("dma: stream still enabled")
	ErrStreamBusy        = errors.New("dma: stream checked out by a transfer")
	ErrInvalidChannel    = errors.New("dma: channel cannot serve peripheral on stream")
	ErrRequestMismatch   = errors.New("dma: request built for another stream")
	ErrNoStreamAvailable = errors.New("dma: all streams claimed")
)

const (
	badStreamIndex        = "dma: invalid stream index"
	badController         = "dma: invalid controller"
	badEvent              = "dma: invalid event"
	badCheckedOut         = "dma: stream is checked out by a transfer"
	badFinishedTransfer   = "dma: transfer already reset"
	badReplacementLength  = "dma: replacement buffer length differs"
	streamsPerController  = 8
	maxTransferCount      = 0xffff
	streamsPerStatusGroup = 4
)

// Controller owns the eight streams of one DMA controller. Streams are fixed
// elements of the controller and handed out by pointer.
type Controller struct {
	bus     Bus
	id      ControllerID
	streams [streamsPerController]Stream
	// Bitmask of claimed streams.
	claimedMask uint8
	nc          noCopy
}

// NewController returns a controller for the register window behind bus.
// Init must be called before any stream is used.
func NewController(id ControllerID, bus Bus) *Controller {
	if id != Controller1 && id != Controller2 {
		panic(badController)
	}
	c := &Controller{bus: bus, id: id}
	for i := range c.streams {
		c.streams[i] = Stream{ctrl: c, index: uint8(i)}
	}
	return c
}

// ID returns 1 for DMA1 and 2 for DMA2.
func (c *Controller) ID() ControllerID { return c.id }

// Init stops every stream, clears all status flags and leaves every stream
// idle and unclaimed. Clocks must already be running.
func (c *Controller) Init() {
	for i := range c.streams {
		s := &c.streams[i]
		c.bus.Store(s.offset(regCR), 0)
		s.clearFlags()
		s.checkedOut = false
	}
	c.claimedMask = 0
}

// Stream returns a stream by index.
func (c *Controller) Stream(index uint8) *Stream {
	if index >= streamsPerController {
		panic(badStreamIndex)
	}
	return &c.streams[index]
}

// ClaimStream returns an unclaimed stream
// or an error if all streams on this controller are claimed.
func (c *Controller) ClaimStream() (*Stream, error) {
	for i := uint8(0); i < streamsPerController; i++ {
		s := c.Stream(i)
		if s.TryClaim() {
			return s, nil
		}
	}
	return nil, ErrNoStreamAvailable
}

// noCopy may be embedded into structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
