package dma

// Channel is the request multiplexer input (CHSEL) a stream listens to.
type Channel uint8

// Peripheral is a memory-to-peripheral request endpoint: the data register
// the stream writes to and the width of one element in that register.
type Peripheral uint8

const (
	PeriphNone Peripheral = iota
	SPI1TX
	SPI2TX
	SPI3TX
	SPI4TX
	SPI5TX
	SPI6TX
	I2S2ExtTX
	I2S3ExtTX
	USART1TX
	USART2TX
	USART3TX
	UART4TX
	UART5TX
	USART6TX
	UART7TX
	UART8TX
	I2C1TX
	I2C2TX
	I2C3TX
	DAC1
	DAC2
	SAI1A
	SAI1B
	CRYPIn
	HashIn
	TIM1Up
	TIM1CH1
	TIM1CH2
	TIM1CH3
	TIM1CH4
	TIM2Up
	TIM2CH1
	TIM2CH2
	TIM3Up
	TIM3CH1
	TIM3CH2
	TIM3CH3
	TIM4Up
	TIM4CH1
	TIM4CH2
	TIM4CH3
	TIM5Up
	TIM5CH1
	TIM5CH2
	TIM5CH3
	TIM6Up
	TIM7Up
	TIM8Up
	TIM8CH1
	TIM8CH2
	TIM8CH3
	TIM8CH4
	numPeripherals
)

type endpoint struct {
	name  string
	addr  uint32
	width uint8
}

// Peripheral base addresses on the STM32F42x/43x.
const (
	baseTIM2    = 0x40000000
	baseTIM3    = 0x40000400
	baseTIM4    = 0x40000800
	baseTIM5    = 0x40000C00
	baseTIM6    = 0x40001000
	baseTIM7    = 0x40001400
	baseI2S2ext = 0x40003400
	baseSPI2    = 0x40003800
	baseSPI3    = 0x40003C00
	baseI2S3ext = 0x40004000
	baseUSART2  = 0x40004400
	baseUSART3  = 0x40004800
	baseUART4   = 0x40004C00
	baseUART5   = 0x40005000
	baseI2C1    = 0x40005400
	baseI2C2    = 0x40005800
	baseI2C3    = 0x40005C00
	baseDAC     = 0x40007400
	baseUART7   = 0x40007800
	baseUART8   = 0x40007C00
	baseTIM1    = 0x40010000
	baseTIM8    = 0x40010400
	baseUSART1  = 0x40011000
	baseUSART6  = 0x40011400
	baseSPI1    = 0x40013000
	baseSPI4    = 0x40013400
	baseSPI5    = 0x40015000
	baseSPI6    = 0x40015400
	baseSAI1    = 0x40015800
	baseCRYP    = 0x50060000
	baseHASH    = 0x50060400

	offSPI_DR      = 0x0C
	offUSART_DR    = 0x04
	offI2C_DR      = 0x10
	offDAC_DHR12R1 = 0x08
	offDAC_DHR12R2 = 0x14
	offSAI_ADR     = 0x20
	offSAI_BDR     = 0x40
	offCRYP_DIN    = 0x08
	offHASH_DIN    = 0x04
	offTIM_CCR1    = 0x34
	offTIM_CCR2    = 0x38
	offTIM_CCR3    = 0x3C
	offTIM_CCR4    = 0x40
	offTIM_DMAR    = 0x4C
)

var endpoints = [numPeripherals]endpoint{
	SPI1TX:    {"SPI1_TX", baseSPI1 + offSPI_DR, 1},
	SPI2TX:    {"SPI2_TX", baseSPI2 + offSPI_DR, 1},
	SPI3TX:    {"SPI3_TX", baseSPI3 + offSPI_DR, 1},
	SPI4TX:    {"SPI4_TX", baseSPI4 + offSPI_DR, 1},
	SPI5TX:    {"SPI5_TX", baseSPI5 + offSPI_DR, 1},
	SPI6TX:    {"SPI6_TX", baseSPI6 + offSPI_DR, 1},
	I2S2ExtTX: {"I2S2_EXT_TX", baseI2S2ext + offSPI_DR, 2},
	I2S3ExtTX: {"I2S3_EXT_TX", baseI2S3ext + offSPI_DR, 2},
	USART1TX:  {"USART1_TX", baseUSART1 + offUSART_DR, 1},
	USART2TX:  {"USART2_TX", baseUSART2 + offUSART_DR, 1},
	USART3TX:  {"USART3_TX", baseUSART3 + offUSART_DR, 1},
	UART4TX:   {"UART4_TX", baseUART4 + offUSART_DR, 1},
	UART5TX:   {"UART5_TX", baseUART5 + offUSART_DR, 1},
	USART6TX:  {"USART6_TX", baseUSART6 + offUSART_DR, 1},
	UART7TX:   {"UART7_TX", baseUART7 + offUSART_DR, 1},
	UART8TX:   {"UART8_TX", baseUART8 + offUSART_DR, 1},
	I2C1TX:    {"I2C1_TX", baseI2C1 + offI2C_DR, 1},
	I2C2TX:    {"I2C2_TX", baseI2C2 + offI2C_DR, 1},
	I2C3TX:    {"I2C3_TX", baseI2C3 + offI2C_DR, 1},
	DAC1:      {"DAC1", baseDAC + offDAC_DHR12R1, 2},
	DAC2:      {"DAC2", baseDAC + offDAC_DHR12R2, 2},
	SAI1A:     {"SAI1_A", baseSAI1 + offSAI_ADR, 4},
	SAI1B:     {"SAI1_B", baseSAI1 + offSAI_BDR, 4},
	CRYPIn:    {"CRYP_IN", baseCRYP + offCRYP_DIN, 4},
	HashIn:    {"HASH_IN", baseHASH + offHASH_DIN, 4},
	TIM1Up:    {"TIM1_UP", baseTIM1 + offTIM_DMAR, 2},
	TIM1CH1:   {"TIM1_CH1", baseTIM1 + offTIM_CCR1, 2},
	TIM1CH2:   {"TIM1_CH2", baseTIM1 + offTIM_CCR2, 2},
	TIM1CH3:   {"TIM1_CH3", baseTIM1 + offTIM_CCR3, 2},
	TIM1CH4:   {"TIM1_CH4", baseTIM1 + offTIM_CCR4, 2},
	TIM2Up:    {"TIM2_UP", baseTIM2 + offTIM_DMAR, 4},
	TIM2CH1:   {"TIM2_CH1", baseTIM2 + offTIM_CCR1, 4},
	TIM2CH2:   {"TIM2_CH2", baseTIM2 + offTIM_CCR2, 4},
	TIM3Up:    {"TIM3_UP", baseTIM3 + offTIM_DMAR, 2},
	TIM3CH1:   {"TIM3_CH1", baseTIM3 + offTIM_CCR1, 2},
	TIM3CH2:   {"TIM3_CH2", baseTIM3 + offTIM_CCR2, 2},
	TIM3CH3:   {"TIM3_CH3", baseTIM3 + offTIM_CCR3, 2},
	TIM4Up:    {"TIM4_UP", baseTIM4 + offTIM_DMAR, 2},
	TIM4CH1:   {"TIM4_CH1", baseTIM4 + offTIM_CCR1, 2},
	TIM4CH2:   {"TIM4_CH2", baseTIM4 + offTIM_CCR2, 2},
	TIM4CH3:   {"TIM4_CH3", baseTIM4 + offTIM_CCR3, 2},
	TIM5Up:    {"TIM5_UP", baseTIM5 + offTIM_DMAR, 4},
	TIM5CH1:   {"TIM5_CH1", baseTIM5 + offTIM_CCR1, 4},
	TIM5CH2:   {"TIM5_CH2", baseTIM5 + offTIM_CCR2, 4},
	TIM5CH3:   {"TIM5_CH3", baseTIM5 + offTIM_CCR3, 4},
	TIM6Up:    {"TIM6_UP", baseTIM6 + offTIM_DMAR, 2},
	TIM7Up:    {"TIM7_UP", baseTIM7 + offTIM_DMAR, 2},
	TIM8Up:    {"TIM8_UP", baseTIM8 + offTIM_DMAR, 2},
	TIM8CH1:   {"TIM8_CH1", baseTIM8 + offTIM_CCR1, 2},
	TIM8CH2:   {"TIM8_CH2", baseTIM8 + offTIM_CCR2, 2},
	TIM8CH3:   {"TIM8_CH3", baseTIM8 + offTIM_CCR3, 2},
	TIM8CH4:   {"TIM8_CH4", baseTIM8 + offTIM_CCR4, 2},
}

// String returns the reference manual name of the request line.
func (p Peripheral) String() string {
	if p == PeriphNone || p >= numPeripherals {
		return "none"
	}
	return endpoints[p].name
}

// Addr returns the address of the peripheral data register written by the
// stream.
func (p Peripheral) Addr() uint32 {
	if p >= numPeripherals {
		return 0
	}
	return endpoints[p].addr
}

// Width returns the element width of the peripheral data register in bytes.
func (p Peripheral) Width() uint8 {
	if p >= numPeripherals {
		return 0
	}
	return endpoints[p].width
}

// Memory-to-peripheral request mapping of RM0090 tables 42 and 43, indexed
// [controller-1][stream][channel]. Peripheral-to-memory requests are left out.
var requestMap = [2][streamsPerController][8]Peripheral{
	{ // DMA1
		0: {2: TIM4CH1, 5: UART8TX, 6: TIM5CH3},
		1: {3: TIM2Up, 5: UART7TX, 7: TIM6Up},
		2: {1: TIM7Up, 5: TIM3Up, 6: TIM5CH1},
		3: {2: TIM4CH2, 4: USART3TX},
		4: {0: SPI2TX, 1: TIM7Up, 2: I2S2ExtTX, 3: I2C3TX, 4: UART4TX, 5: TIM3CH1, 6: TIM5CH2, 7: USART3TX},
		5: {0: SPI3TX, 2: I2S3ExtTX, 3: TIM2CH1, 5: TIM3CH2, 7: DAC1},
		6: {1: I2C1TX, 2: TIM4Up, 3: TIM2CH2, 4: USART2TX, 6: TIM5Up, 7: DAC2},
		7: {0: SPI3TX, 1: I2C1TX, 2: TIM4CH3, 3: TIM2Up, 4: UART5TX, 5: TIM3CH3, 7: I2C2TX},
	},
	{ // DMA2
		1: {0: SAI1A, 4: SPI4TX, 6: TIM1CH1, 7: TIM8Up},
		2: {0: TIM8CH1, 6: TIM1CH2, 7: TIM8CH1},
		3: {0: SAI1A, 3: SPI1TX, 6: TIM1CH1, 7: TIM8CH2},
		4: {1: SAI1B, 2: SPI5TX, 5: SPI4TX, 6: TIM1CH4, 7: TIM8CH3},
		5: {0: SAI1B, 1: SPI6TX, 3: SPI1TX, 6: TIM1Up},
		6: {0: TIM1CH1, 2: CRYPIn, 5: USART6TX, 6: TIM1CH3, 7: SPI5TX},
		7: {2: HashIn, 4: USART1TX, 5: USART6TX, 7: TIM8CH4},
	},
}

// Request is a validated pairing of a stream's request channel with the
// peripheral endpoint it serves.
type Request struct {
	controller ControllerID
	stream     uint8
	channel    Channel
	periph     Peripheral
}

// NewRequest checks that channel on the given controller stream is wired to
// periph and returns the pairing.
func NewRequest(ctrl ControllerID, stream uint8, ch Channel, periph Peripheral) (Request, error) {
	if ctrl != Controller1 && ctrl != Controller2 {
		return Request{}, ErrInvalidChannel
	}
	if stream >= streamsPerController || ch > 7 || periph == PeriphNone || periph >= numPeripherals {
		return Request{}, ErrInvalidChannel
	}
	if requestMap[ctrl-1][stream][ch] != periph {
		return Request{}, ErrInvalidChannel
	}
	return Request{controller: ctrl, stream: stream, channel: ch, periph: periph}, nil
}

// FindRequest returns the first stream/channel pairing on ctrl that serves
// periph.
func FindRequest(ctrl ControllerID, periph Peripheral) (Request, error) {
	if ctrl != Controller1 && ctrl != Controller2 {
		return Request{}, ErrInvalidChannel
	}
	for stream := uint8(0); stream < streamsPerController; stream++ {
		for ch := Channel(0); ch < 8; ch++ {
			if periph != PeriphNone && requestMap[ctrl-1][stream][ch] == periph {
				return Request{controller: ctrl, stream: stream, channel: ch, periph: periph}, nil
			}
		}
	}
	return Request{}, ErrInvalidChannel
}

// Controller returns the controller the request line belongs to.
func (r Request) Controller() ControllerID { return r.controller }

// Stream returns the stream index of the pairing.
func (r Request) Stream() uint8 { return r.stream }

// Channel returns the CHSEL value of the pairing.
func (r Request) Channel() Channel { return r.channel }

// Peripheral returns the endpoint of the pairing.
func (r Request) Peripheral() Peripheral { return r.periph }

func (r Request) matches(s *Stream) bool {
	return r.periph != PeriphNone && r.controller == s.ctrl.id && r.stream == s.index
}
