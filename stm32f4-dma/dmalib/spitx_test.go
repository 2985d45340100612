package dmalib

import (
	"bytes"
	"runtime"
	"testing"

	dma "github.com/tinygo-org/dma/stm32f4-dma"
	"github.com/tinygo-org/dma/stm32f4-dma/dmasim"
)

// fakeSPI records what reaches the fallback bus.
type fakeSPI struct {
	tx        [][]byte
	transfers []byte
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.tx = append(f.tx, append([]byte(nil), w...))
	for i := range r {
		r[i] = 0xA5
	}
	return nil
}

func (f *fakeSPI) Transfer(b byte) (byte, error) {
	f.transfers = append(f.transfers, b)
	return ^b, nil
}

// newSPI1 returns a transmitter on DMA2 stream 3, SPI1 TX.
func newSPI1(t *testing.T, bus *fakeSPI) (*SPITx, *dmasim.Controller) {
	t.Helper()
	sim := dmasim.New()
	c := dma.NewController(dma.Controller2, sim)
	c.Init()
	req, err := dma.NewRequest(dma.Controller2, 3, 3, dma.SPI1TX)
	if err != nil {
		t.Fatal(err)
	}
	cfg := SPITxConfig{Stream: c.Stream(3), Request: req}
	if bus != nil {
		cfg.Bus = bus
	}
	spi, err := NewSPITx(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sim.ClearWrites()
	return spi, sim
}

// hardware plays the DMA engine for stream: every transfer that gets enabled
// either completes or, with fail set, errors out. It runs until done is
// closed.
func hardware(sim *dmasim.Controller, stream uint8, fail bool, done <-chan struct{}) {
	cr := dmasim.StreamReg(stream, dmasim.CR)
	for {
		select {
		case <-done:
			return
		default:
		}
		if sim.Reg(cr)&dmasim.CR_EN != 0 {
			if fail {
				sim.Fail(stream)
			} else {
				sim.Complete(stream)
			}
		}
		runtime.Gosched()
	}
}

func TestSPITxConfigValidate(t *testing.T) {
	c := dma.NewController(dma.Controller1, dmasim.New())
	spi3, _ := dma.NewRequest(dma.Controller1, 5, 0, dma.SPI3TX)
	dac, _ := dma.NewRequest(dma.Controller1, 5, 7, dma.DAC1)
	cases := []struct {
		name string
		cfg  SPITxConfig
		want error
	}{
		{"ok", SPITxConfig{Stream: c.Stream(5), Request: spi3}, nil},
		{"nil stream", SPITxConfig{Request: spi3}, errNilStream},
		{"other stream", SPITxConfig{Stream: c.Stream(7), Request: spi3}, errWrongStream},
		{"halfword peripheral", SPITxConfig{Stream: c.Stream(5), Request: dac}, errByteWide},
	}
	for _, tc := range cases {
		if got := tc.cfg.Validate(); got != tc.want {
			t.Errorf("%s: Validate() = %v, want %v", tc.name, got, tc.want)
		}
	}
	spi, err := NewSPITx(SPITxConfig{Stream: c.Stream(5), Request: spi3})
	if err != nil {
		t.Fatal(err)
	}
	if !spi.Stream().IsClaimed() {
		t.Error("NewSPITx did not claim the stream")
	}
}

func TestSPITxWrite(t *testing.T) {
	spi, sim := newSPI1(t, nil)
	done := make(chan struct{})
	defer close(done)
	go hardware(sim, 3, false, done)

	msg := []byte("hello, display")
	if err := spi.Tx(msg, nil); err != nil {
		t.Fatal(err)
	}
	if got := sim.WritesTo(dmasim.StreamReg(3, dmasim.NDTR)); len(got) != 1 || got[0] != uint32(len(msg)) {
		t.Errorf("NDTR writes = %v", got)
	}
	if got := sim.Reg(dmasim.StreamReg(3, dmasim.PAR)); got != dma.SPI1TX.Addr() {
		t.Errorf("PAR = %#x, want SPI1 DR", got)
	}
	s := spi.Stream()
	if s.IsCheckedOut() || s.IsEnabled() || s.IsComplete() {
		t.Error("stream not reset after Tx")
	}
	if err := spi.Tx(nil, nil); err != nil {
		t.Errorf("empty Tx: %v", err)
	}
}

func TestSPITxSplitsLongWrites(t *testing.T) {
	spi, sim := newSPI1(t, nil)
	done := make(chan struct{})
	defer close(done)
	go hardware(sim, 3, false, done)

	buf := bytes.Repeat([]byte{0x5A}, 70000)
	if err := spi.Tx(buf, nil); err != nil {
		t.Fatal(err)
	}
	got := sim.WritesTo(dmasim.StreamReg(3, dmasim.NDTR))
	if len(got) != 2 || got[0] != 65535 || got[1] != 70000-65535 {
		t.Errorf("NDTR writes = %v, want [65535 4465]", got)
	}
}

func TestSPITxError(t *testing.T) {
	spi, sim := newSPI1(t, nil)
	done := make(chan struct{})
	defer close(done)
	go hardware(sim, 3, true, done)

	if err := spi.Tx([]byte{1, 2, 3}, nil); err != dma.ErrTransfer {
		t.Fatalf("Tx: err = %v, want dma.ErrTransfer", err)
	}
	if s := spi.Stream(); s.IsCheckedOut() || s.HasError() {
		t.Error("stream not reset after a failed write")
	}
}

func TestSPITxTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("spins through the full retry budget")
	}
	spi, sim := newSPI1(t, nil)
	if err := spi.Tx([]byte{1}, nil); err != errTimeout {
		t.Fatalf("Tx: err = %v, want timeout", err)
	}
	if sim.Reg(dmasim.StreamReg(3, dmasim.CR))&dmasim.CR_EN != 0 {
		t.Error("stream left enabled after timeout")
	}
	if spi.Stream().IsCheckedOut() {
		t.Error("stream still checked out after timeout")
	}
}

func TestSPITxFallback(t *testing.T) {
	spi, sim := newSPI1(t, nil)
	if err := spi.Tx([]byte{1}, make([]byte, 1)); err != errNoReceive {
		t.Errorf("full duplex without bus: err = %v", err)
	}
	if len(sim.Writes()) != 0 {
		t.Error("full duplex request reached the stream")
	}

	bus := &fakeSPI{}
	spi, sim = newSPI1(t, bus)
	r := make([]byte, 2)
	if err := spi.Tx([]byte{7, 8}, r); err != nil {
		t.Fatal(err)
	}
	if len(bus.tx) != 1 || !bytes.Equal(bus.tx[0], []byte{7, 8}) || r[0] != 0xA5 {
		t.Errorf("full duplex not forwarded: %v %v", bus.tx, r)
	}
	if rx, err := spi.Transfer(0x0F); err != nil || rx != 0xF0 {
		t.Errorf("Transfer = %#x, %v", rx, err)
	}
	if len(sim.Writes()) != 0 {
		t.Error("forwarded calls reached the stream")
	}
}

func TestSPITxTransferWithoutBus(t *testing.T) {
	spi, sim := newSPI1(t, nil)
	done := make(chan struct{})
	defer close(done)
	go hardware(sim, 3, false, done)

	rx, err := spi.Transfer(0x42)
	if err != nil || rx != 0 {
		t.Fatalf("Transfer = %#x, %v", rx, err)
	}
	if got := sim.WritesTo(dmasim.StreamReg(3, dmasim.NDTR)); len(got) != 1 || got[0] != 1 {
		t.Errorf("NDTR writes = %v, want [1]", got)
	}
}
