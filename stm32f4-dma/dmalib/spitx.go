package dmalib

import (
	dma "github.com/tinygo-org/dma/stm32f4-dma"
	"tinygo.org/x/drivers"
)

// maxChunk is the largest write a single stream transfer can carry.
const maxChunk = 0xffff

// SPITxConfig configures a DMA driven SPI transmitter.
type SPITxConfig struct {
	// Stream carrying the writes. Claimed by NewSPITx if not already.
	Stream *dma.Stream
	// Request is the TX request line of the SPI peripheral on Stream,
	// for instance the result of dma.FindRequest(dma.Controller2, dma.SPI1TX).
	Request dma.Request
	// Bus, if set, serves full duplex transfers and single bytes. Usually the
	// machine.SPI the stream feeds.
	Bus drivers.SPI
}

// Validate checks that the stream and request fit together.
func (cfg SPITxConfig) Validate() error {
	if cfg.Stream == nil {
		return errNilStream
	}
	req := cfg.Request
	if req.Controller() != cfg.Stream.Controller().ID() || req.Stream() != cfg.Stream.Index() {
		return errWrongStream
	}
	if req.Peripheral().Width() != 1 {
		return errByteWide
	}
	return nil
}

// SPITx pushes SPI writes through a DMA stream. The SPI peripheral itself
// must already be configured with its TX DMA request enabled.
//
// Tx returns once the last byte was handed to the peripheral data register.
// The peripheral may still be shifting it out.
type SPITx struct {
	stream *dma.Stream
	req    dma.Request
	bus    drivers.SPI
}

var _ drivers.SPI = (*SPITx)(nil)

func NewSPITx(cfg SPITxConfig) (*SPITx, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Stream.TryClaim() // Stream should be claimed beforehand, we just guarantee it's claimed.
	return &SPITx{stream: cfg.Stream, req: cfg.Request, bus: cfg.Bus}, nil
}

// Tx transmits w. Transmit-only calls (r == nil) go through the stream,
// split into transfers of at most 65535 bytes. Calls that also receive are
// forwarded to the fallback bus.
func (spi *SPITx) Tx(w, r []byte) error {
	if r != nil {
		if spi.bus == nil {
			return errNoReceive
		}
		return spi.bus.Tx(w, r)
	}
	for len(w) > 0 {
		n := min(len(w), maxChunk)
		if err := spi.write(w[:n]); err != nil {
			return err
		}
		w = w[n:]
	}
	return nil
}

// Transfer writes a single byte. The received byte is only available with a
// fallback bus; without one Transfer sends b through the stream and returns 0.
func (spi *SPITx) Transfer(b byte) (byte, error) {
	if spi.bus != nil {
		return spi.bus.Transfer(b)
	}
	buf := [1]byte{b}
	return 0, spi.write(buf[:])
}

// Stream returns the stream used for writes.
func (spi *SPITx) Stream() *dma.Stream {
	return spi.stream
}

// write runs one transfer of w and waits for it with a bounded number of
// retries. The stream is reset on every exit path.
func (spi *SPITx) write(w []byte) error {
	tx, err := dma.Start(spi.stream, spi.req, w)
	if err != nil {
		return err
	}
	retries := timeoutRetries
	for !tx.IsComplete() && !tx.HasError() && retries > 0 {
		gosched()
		retries--
	}
	complete, failed := tx.IsComplete(), tx.HasError()
	tx.Reset()
	switch {
	case complete:
		return nil
	case failed:
		return dma.ErrTransfer
	}
	println("DMA SPI tx timeout")
	return errTimeout
}
