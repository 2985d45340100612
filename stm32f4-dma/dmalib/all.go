// Package dmalib builds peripheral drivers on top of STM32F4 DMA streams.
package dmalib

import (
	"errors"
	"math"
	"runtime"
)

const timeoutRetries = math.MaxUint16 * 8

var (
	errTimeout     = errors.New("dmalib:timeout")
	errStopped     = errors.New("dmalib:stopped")
	errNilStream   = errors.New("dmalib:nil stream")
	errNoReceive   = errors.New("dmalib:receive needs a fallback bus")
	errWrongStream = errors.New("dmalib:request is for another stream")
	errByteWide    = errors.New("dmalib:peripheral is not byte wide")
	errBufferLen   = errors.New("dmalib:buffer length out of range")
	errNilFill     = errors.New("dmalib:nil fill function")
)

func gosched() {
	runtime.Gosched()
}
