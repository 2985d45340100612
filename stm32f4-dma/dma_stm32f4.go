//go:build tinygo && stm32f4

package dma

import (
	"runtime/volatile"
	"unsafe"
)

// STM32F4 DMA controller handles.
var (
	DMA1 = NewController(Controller1, mmio(0x40026000))
	DMA2 = NewController(Controller2, mmio(0x40026400))
)

const (
	rccBase     = 0x40023800
	rccAHB1RSTR = 0x10
	rccAHB1ENR  = 0x30

	rccDMA1_Pos = 21 // DMA1EN, DMA1RST
	rccDMA2_Pos = 22 // DMA2EN, DMA2RST
)

// mmio is a register window mapped at its value.
type mmio uintptr

func (m mmio) reg(offset uint32) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(m) + uintptr(offset)))
}

func (m mmio) Load(offset uint32) uint32 {
	return m.reg(offset).Get()
}

func (m mmio) Store(offset uint32, value uint32) {
	m.reg(offset).Set(value)
}

// Configure enables the controller clock on AHB1, pulses the controller
// reset and initializes every stream. Any transfer in flight is lost.
func (c *Controller) Configure() {
	var bit uint32 = 1 << rccDMA1_Pos
	if c.id == Controller2 {
		bit = 1 << rccDMA2_Pos
	}
	rcc := mmio(rccBase)
	rcc.reg(rccAHB1ENR).SetBits(bit)
	rcc.reg(rccAHB1RSTR).SetBits(bit)
	rcc.reg(rccAHB1RSTR).ClearBits(bit)
	c.Init()
}
