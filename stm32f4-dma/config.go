package dma

// Register offsets within a controller, see RM0090 10.5.
const (
	regLISR  = 0x00
	regHISR  = 0x04
	regLIFCR = 0x08
	regHIFCR = 0x0C

	streamBase   = 0x10
	streamStride = 0x18

	// Per stream, relative to streamBase + index*streamStride.
	regCR   = 0x00
	regNDTR = 0x04
	regPAR  = 0x08
	regM0AR = 0x0C
	regM1AR = 0x10
	regFCR  = 0x14
)

// Stream control register (SxCR) fields.
const (
	crEN_Pos     = 0
	crDMEIE_Pos  = 1
	crTEIE_Pos   = 2
	crHTIE_Pos   = 3
	crTCIE_Pos   = 4
	crPFCTRL_Pos = 5
	crDIR_Pos    = 6
	crDIR_Msk    = 0x3 << crDIR_Pos
	crCIRC_Pos   = 8
	crPINC_Pos   = 9
	crMINC_Pos   = 10
	crPSIZE_Pos  = 11
	crPSIZE_Msk  = 0x3 << crPSIZE_Pos
	crMSIZE_Pos  = 13
	crMSIZE_Msk  = 0x3 << crMSIZE_Pos
	crPL_Pos     = 16
	crPL_Msk     = 0x3 << crPL_Pos
	crDBM_Pos    = 18
	crCT_Pos     = 19
	crCHSEL_Pos  = 25
	crCHSEL_Msk  = 0x7 << crCHSEL_Pos

	crEN = 1 << crEN_Pos
	crCT = 1 << crCT_Pos
)

// Status (xISR) and clear (xIFCR) flag bits, relative to the stream's offset
// inside its group register.
const (
	flagFE  = 1 << 0
	flagDME = 1 << 2
	flagTE  = 1 << 3
	flagHT  = 1 << 4
	flagTC  = 1 << 5

	flagAll = flagFE | flagDME | flagTE | flagHT | flagTC
)

// Bit offset of each stream's flags inside LISR/HISR and LIFCR/HIFCR.
var flagShift = [streamsPerStatusGroup]uint32{0, 6, 16, 22}

type direction uint32

const (
	dirPeriphToMem direction = 0b00
	dirMemToPeriph direction = 0b01
	dirMemToMem    direction = 0b10
)

type dataSize uint32

const (
	dataSize8 dataSize = iota
	dataSize16
	dataSize32
)

// dataSizeOf returns the MSIZE/PSIZE encoding of an element width in bytes.
func dataSizeOf(width uintptr) (dataSize, bool) {
	switch width {
	case 1:
		return dataSize8, true
	case 2:
		return dataSize16, true
	case 4:
		return dataSize32, true
	}
	return 0, false
}

// Priority is the software priority level of a stream (PL bits).
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
)

// streamConfig is an SxCR value under construction.
type streamConfig struct {
	CR uint32
}

func (cc *streamConfig) setDirection(dir direction) {
	cc.CR = (cc.CR &^ crDIR_Msk) | (uint32(dir) << crDIR_Pos)
}

func (cc *streamConfig) setMemorySize(size dataSize) {
	cc.CR = (cc.CR &^ crMSIZE_Msk) | (uint32(size) << crMSIZE_Pos)
}

func (cc *streamConfig) setPeripheralSize(size dataSize) {
	cc.CR = (cc.CR &^ crPSIZE_Msk) | (uint32(size) << crPSIZE_Pos)
}

func (cc *streamConfig) setChannel(ch Channel) {
	cc.CR = (cc.CR &^ crCHSEL_Msk) | (uint32(ch) << crCHSEL_Pos)
}

func (cc *streamConfig) setPriority(pl Priority) {
	cc.CR = (cc.CR &^ crPL_Msk) | (uint32(pl) << crPL_Pos)
}

func (cc *streamConfig) setMemoryIncrement(incr bool) {
	setBitPos(&cc.CR, crMINC_Pos, incr)
}

func (cc *streamConfig) setPeripheralIncrement(incr bool) {
	setBitPos(&cc.CR, crPINC_Pos, incr)
}

func (cc *streamConfig) setCircular(circ bool) {
	setBitPos(&cc.CR, crCIRC_Pos, circ)
}

func (cc *streamConfig) setDoubleBuffer(dbm bool) {
	setBitPos(&cc.CR, crDBM_Pos, dbm)
}

func (cc *streamConfig) setCurrentTarget(ct uint8) {
	setBitPos(&cc.CR, crCT_Pos, ct != 0)
}

// The DMA is always the flow controller for memory-to-peripheral transfers.
func (cc *streamConfig) setPeripheralFlowControl(pfctrl bool) {
	setBitPos(&cc.CR, crPFCTRL_Pos, pfctrl)
}

func (cc *streamConfig) setEnable(enable bool) {
	setBitPos(&cc.CR, crEN_Pos, enable)
}

func setBitPos(cc *uint32, pos uint32, bit bool) {
	if bit {
		*cc = *cc | (1 << pos)
	} else {
		*cc = *cc & ^(1 << pos) // unset bit.
	}
}
