//go:build stm32f4

// This example plays a 1 kHz sine wave on DAC channel 1 (PA4) of the
// STM32F4-Discovery at 48000 samples per second. TIM6 paces the DAC and the
// DAC pulls each sample from DMA1 stream 5 in double buffer mode, so the wave
// has no gaps while the CPU refills the idle buffer.
package main

import (
	"machine"
	"math"
	"time"

	"device/stm32"

	dma "github.com/tinygo-org/dma/stm32f4-dma"
	"github.com/tinygo-org/dma/stm32f4-dma/dmalib"
)

const (
	sampleRate = 48000
	toneHz     = 1000
	timerClock = 84_000_000 // APB1 timer clock.

	NUM_SAMPLES = 256
)

var sine [sampleRate / toneHz]uint16

func main() {
	time.Sleep(500 * time.Millisecond)
	for i := range sine {
		s := math.Sin(2 * math.Pi * float64(i) / float64(len(sine)))
		sine[i] = uint16(2048 + 2000*s) // 12 bit right aligned.
	}

	machine.PA4.Configure(machine.PinConfig{Mode: machine.PinInputAnalog})
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_DACEN | stm32.RCC_APB1ENR_TIM6EN)

	dma.DMA1.Configure()
	req, err := dma.NewRequest(dma.Controller1, 5, 7, dma.DAC1)
	if err != nil {
		panic(err.Error())
	}
	phase := 0
	player, err := dmalib.NewPlayer[uint16](dmalib.PlayerConfig{
		Stream:    dma.DMA1.Stream(5),
		Request:   req,
		BufferLen: NUM_SAMPLES,
		Priority:  dma.PriorityHigh,
	}, func(buf []uint16) {
		for i := range buf {
			buf[i] = sine[phase]
			phase = (phase + 1) % len(sine)
		}
	})
	if err != nil {
		panic(err.Error())
	}

	// DAC channel 1 triggered by TIM6 TRGO (TSEL1=000), DMA requests on.
	stm32.DAC.CR.Set(stm32.DAC_CR_EN1 | stm32.DAC_CR_TEN1 | stm32.DAC_CR_DMAEN1)
	stm32.TIM6.PSC.Set(0)
	stm32.TIM6.ARR.Set(timerClock/sampleRate - 1)
	stm32.TIM6.CR2.Set(0b010 << 4) // MMS: update event is TRGO.
	stm32.TIM6.CR1.SetBits(1)      // CEN

	last := 0
	for {
		if err := player.Poll(); err != nil {
			println("playback stopped:", err.Error())
			return
		}
		if n := player.Fills(); n-last >= sampleRate/NUM_SAMPLES {
			println("buffers filled:", n)
			last = n
		}
		time.Sleep(time.Millisecond)
	}
}
