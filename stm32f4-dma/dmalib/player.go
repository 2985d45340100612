package dmalib

import (
	dma "github.com/tinygo-org/dma/stm32f4-dma"
	"golang.org/x/exp/constraints"
)

// PlayerConfig configures a continuous sample player.
type PlayerConfig struct {
	// Stream that plays the samples.
	Stream *dma.Stream
	// Request paces the stream, typically a DAC channel or a timer update.
	Request dma.Request
	// BufferLen is the number of samples in each of the two buffers.
	BufferLen int
	Priority  dma.Priority
}

// Validate checks the configuration without touching the hardware.
func (cfg PlayerConfig) Validate() error {
	if cfg.Stream == nil {
		return errNilStream
	}
	if cfg.Request.Controller() != cfg.Stream.Controller().ID() || cfg.Request.Stream() != cfg.Stream.Index() {
		return errWrongStream
	}
	if cfg.BufferLen <= 0 || cfg.BufferLen > maxChunk {
		return errBufferLen
	}
	return nil
}

// Player streams samples to a peripheral without gaps. Two buffers alternate:
// while the hardware plays one, Poll refills the other through the fill
// function given to NewPlayer.
type Player[T constraints.Integer] struct {
	tx     *dma.DoubleBuffer[T]
	stream *dma.Stream
	fill   func(buf []T)
	// Number of buffers filled, including the two initial ones.
	fills int
}

// NewPlayer fills both buffers and starts playing them.
func NewPlayer[T constraints.Integer](cfg PlayerConfig, fill func(buf []T)) (*Player[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fill == nil {
		return nil, errNilFill
	}
	s := cfg.Stream
	s.TryClaim()
	if err := s.SetPriority(cfg.Priority); err != nil {
		return nil, err
	}
	p := &Player[T]{stream: s, fill: fill}
	a, b := make([]T, cfg.BufferLen), make([]T, cfg.BufferLen)
	p.refill(a)
	p.refill(b)
	tx, err := dma.StartDoubleBuffered(s, cfg.Request, a, b)
	if err != nil {
		return nil, err
	}
	p.tx = tx
	return p, nil
}

// Poll refills the buffer the hardware left since the last call, if any.
// It must run at least once per buffer period or samples get replayed.
// On a transfer error the player stops and the error is returned.
func (p *Player[T]) Poll() error {
	if p.tx == nil {
		return errStopped
	}
	s, err := p.tx.Poll(p.refill)
	if err != nil {
		p.tx = nil
		p.stream = s
		return err
	}
	return nil
}

// Run polls until stop is closed or the transfer fails, then stops the player.
func (p *Player[T]) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			p.Stop()
			return nil
		default:
		}
		if err := p.Poll(); err != nil {
			return err
		}
		gosched()
	}
}

// Stop halts playback and returns the stream. It may be called more than once.
func (p *Player[T]) Stop() *dma.Stream {
	if p.tx != nil {
		p.stream = p.tx.Reset()
		p.tx = nil
	}
	return p.stream
}

// Playing reports whether the player is running.
func (p *Player[T]) Playing() bool {
	return p.tx != nil
}

// Fills returns how many buffers have been filled so far.
func (p *Player[T]) Fills() int {
	return p.fills
}

func (p *Player[T]) refill(buf []T) []T {
	p.fill(buf)
	p.fills++
	return buf
}
