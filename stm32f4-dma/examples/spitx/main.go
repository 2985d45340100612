//go:build stm32f4

// This example drives an ST7789 display on SPI1 of the STM32F4-Discovery and
// pushes its pixel data through DMA2 stream 3 instead of the SPI busy loop.
// connect display SCK to PA5, SDA to PA7, RES to PB0, DC to PB1, CS to PB2,
// BL to PB3.
package main

import (
	"image/color"
	"machine"
	"time"

	"device/stm32"

	dma "github.com/tinygo-org/dma/stm32f4-dma"
	"github.com/tinygo-org/dma/stm32f4-dma/dmalib"
	"tinygo.org/x/drivers/st7789"
)

const (
	resetPin = machine.PB0
	dcPin    = machine.PB1
	csPin    = machine.PB2
	blPin    = machine.PB3
)

func main() {
	time.Sleep(time.Second)
	spi := machine.SPI1
	err := spi.Configure(machine.SPIConfig{
		Frequency: 21_000_000,
		SCK:       machine.PA5,
		SDO:       machine.PA7,
		SDI:       machine.PA6,
		Mode:      3,
	})
	if err != nil {
		panic(err.Error())
	}
	// Let SPI1 raise a DMA request whenever its transmit buffer is empty.
	stm32.SPI1.CR2.SetBits(stm32.SPI_CR2_TXDMAEN)

	dma.DMA2.Configure()
	req, err := dma.FindRequest(dma.Controller2, dma.SPI1TX)
	if err != nil {
		panic(err.Error())
	}
	println("SPI1 TX on DMA2 stream", req.Stream(), "channel", req.Channel())
	tx, err := dmalib.NewSPITx(dmalib.SPITxConfig{
		Stream:  dma.DMA2.Stream(req.Stream()),
		Request: req,
		Bus:     spi,
	})
	if err != nil {
		panic(err.Error())
	}

	display := st7789.New(tx, resetPin, dcPin, csPin, blPin)
	display.Configure(st7789.Config{Width: 240, Height: 240})

	colors := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	}
	for i := 0; ; i++ {
		start := time.Now()
		display.FillScreen(colors[i%len(colors)])
		println("frame", i, "took", time.Since(start).String())
		time.Sleep(500 * time.Millisecond)
	}
}
