package dma

import (
	"testing"

	"github.com/tinygo-org/dma/stm32f4-dma/dmasim"
)

func startPingPong(t *testing.T, n int) (*DoubleBuffer[uint16], *dmasim.Controller, []uint16, []uint16) {
	t.Helper()
	c, sim := newTestController(Controller1)
	req := mustRequest(t, Controller1, 5, 7, DAC1)
	a, b := make([]uint16, n), make([]uint16, n)
	db, err := StartDoubleBuffered(c.Stream(5), req, a, b)
	if err != nil {
		t.Fatal(err)
	}
	sim.ClearWrites()
	return db, sim, a, b
}

func sameBuffer(x, y []uint16) bool {
	return len(x) == len(y) && len(x) > 0 && &x[0] == &y[0]
}

func TestDoubleBufferedLengthMismatch(t *testing.T) {
	c, sim := newTestController(Controller1)
	req := mustRequest(t, Controller1, 5, 7, DAC1)
	_, err := StartDoubleBuffered(c.Stream(5), req, make([]uint16, 16), make([]uint16, 15))
	if err != ErrLengthMismatch {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Errorf("%d register writes after rejected configuration", n)
	}
	if c.Stream(5).IsCheckedOut() {
		t.Error("stream checked out after rejected configuration")
	}
}

func TestDoubleBufferedConfiguration(t *testing.T) {
	c, sim := newTestController(Controller1)
	req := mustRequest(t, Controller1, 5, 7, DAC1)
	a, b := make([]uint16, 16), make([]uint16, 16)
	db, err := StartDoubleBuffered(c.Stream(5), req, a, b)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Reset()

	reg := func(r uint32) uint32 { return dmasim.StreamReg(5, r) }
	writes := sim.Writes()
	if len(writes) == 0 || writes[len(writes)-1].Offset != reg(dmasim.CR) {
		t.Fatalf("last write is not the control register: %+v", writes)
	}
	for i, w := range writes {
		enables := w.Offset == reg(dmasim.CR) && w.Value&crEN != 0
		if enables != (i == len(writes)-1) {
			t.Errorf("write %d (%#x=%#x): enable only expected on the last write", i, w.Offset, w.Value)
		}
	}
	cr := sim.Load(reg(dmasim.CR))
	if cr&(1<<crCIRC_Pos) == 0 || cr&(1<<crDBM_Pos) == 0 {
		t.Errorf("CR = %#x, want circular and double buffer mode", cr)
	}
	if cr&crCT != 0 || db.Target() != 0 {
		t.Error("transfer does not start on buffer 0")
	}
	if sim.Load(reg(dmasim.M0AR)) != bufferAddr(a) || sim.Load(reg(dmasim.M1AR)) != bufferAddr(b) {
		t.Error("buffer addresses not installed")
	}
	if got := sim.WritesTo(reg(dmasim.NDTR)); len(got) != 1 || got[0] != 16 {
		t.Errorf("NDTR writes = %v, want [16]", got)
	}
	b0, b1 := db.Buffers()
	if !sameBuffer(b0, a) || !sameBuffer(b1, b) {
		t.Error("Buffers does not return the installed buffers")
	}
}

func TestPollWithoutSwitchIsNoop(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 16)
	defer db.Reset()
	calls := 0
	replace := func(vacated []uint16) []uint16 {
		calls++
		return vacated
	}
	for i := 0; i < 100; i++ {
		s, err := db.Poll(replace)
		if s != nil || err != nil {
			t.Fatalf("poll %d: %v, %v", i, s, err)
		}
	}
	if calls != 0 {
		t.Errorf("replace called %d times without a buffer switch", calls)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Errorf("%d register writes by idle polls", n)
	}
}

func TestPollReplacesVacatedBuffer(t *testing.T) {
	db, sim, a, b := startPingPong(t, 16)
	defer db.Reset()
	m0 := dmasim.StreamReg(5, dmasim.M0AR)
	m1 := dmasim.StreamReg(5, dmasim.M1AR)
	c := make([]uint16, 16)

	if !sim.SwitchTarget(5) {
		t.Fatal("simulated hardware did not switch")
	}
	var got [][]uint16
	s, err := db.Poll(func(vacated []uint16) []uint16 {
		got = append(got, vacated)
		return c
	})
	if s != nil || err != nil {
		t.Fatalf("Poll: %v, %v", s, err)
	}
	if len(got) != 1 || !sameBuffer(got[0], a) {
		t.Fatalf("replace calls = %d, want exactly one with buffer A", len(got))
	}
	writes := sim.Writes()
	if len(writes) != 1 || writes[0].Offset != m0 || writes[0].Value != bufferAddr(c) {
		t.Fatalf("writes = %+v, want a single M0AR write of the replacement", writes)
	}
	if sim.Load(m1) != bufferAddr(b) {
		t.Error("buffer 1 address changed")
	}
	if db.Target() != 1 {
		t.Errorf("Target = %d, want 1", db.Target())
	}

	// Nothing more until the hardware switches again.
	sim.ClearWrites()
	db.Poll(func([]uint16) []uint16 { t.Fatal("replace called without a switch"); return nil })
	if len(sim.Writes()) != 0 {
		t.Error("second poll wrote registers")
	}

	// Switching back to buffer 0 vacates buffer 1.
	d := make([]uint16, 16)
	sim.SwitchTarget(5)
	got = got[:0]
	db.Poll(func(vacated []uint16) []uint16 {
		got = append(got, vacated)
		return d
	})
	if len(got) != 1 || !sameBuffer(got[0], b) {
		t.Fatal("second switch did not hand out buffer B")
	}
	writes = sim.Writes()
	if len(writes) != 1 || writes[0].Offset != m1 || writes[0].Value != bufferAddr(d) {
		t.Fatalf("writes = %+v, want a single M1AR write", writes)
	}
	b0, b1 := db.Buffers()
	if !sameBuffer(b0, c) || !sameBuffer(b1, d) {
		t.Error("installed buffers not tracked")
	}
	if sim.Flags(5)&dmasim.FlagTransferError != 0 {
		t.Error("hardware flagged a write to the buffer in use")
	}
}

func TestPollRefillInPlace(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 4)
	defer db.Reset()
	var next uint16
	refill := func(vacated []uint16) []uint16 {
		for i := range vacated {
			vacated[i] = next
			next++
		}
		return vacated
	}
	for i := 0; i < 10; i++ {
		sim.SwitchTarget(5)
		if _, err := db.Poll(refill); err != nil {
			t.Fatalf("switch %d: %v", i, err)
		}
	}
	if next != 40 {
		t.Errorf("refilled %d elements, want 40", next)
	}
	if sim.Flags(5)&dmasim.FlagTransferError != 0 {
		t.Error("hardware flagged a write to the buffer in use")
	}
}

func TestPollErrorResets(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 16)
	sim.SwitchTarget(5)
	sim.SetFlags(5, dmasim.FlagTransferError)
	called := false
	s, err := db.Poll(func(v []uint16) []uint16 { called = true; return v })
	if err != ErrTransfer {
		t.Fatalf("Poll: err = %v, want ErrTransfer", err)
	}
	if called {
		t.Error("replace called after an error")
	}
	if s == nil || s.IsCheckedOut() || s.IsEnabled() || s.HasError() || s.IsComplete() {
		t.Error("stream not handed back reset")
	}
	for _, w := range sim.Writes() {
		if w.Offset == dmasim.StreamReg(5, dmasim.M0AR) || w.Offset == dmasim.StreamReg(5, dmasim.M1AR) {
			t.Error("address register written after an error")
		}
	}
	mustPanic(t, "Poll after error", func() { db.Poll(func(v []uint16) []uint16 { return v }) })
}

func TestPollDirectModeErrorResets(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 8)
	sim.SetFlags(5, dmasim.FlagDirectModeError)
	if _, err := db.Poll(func(v []uint16) []uint16 { return v }); err != ErrTransfer {
		t.Errorf("Poll: err = %v, want ErrTransfer", err)
	}
}

func TestPollReplacementLengthPanics(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 16)
	defer db.Reset()
	sim.SwitchTarget(5)
	mustPanic(t, "short replacement", func() {
		db.Poll(func([]uint16) []uint16 { return make([]uint16, 15) })
	})
	if len(sim.Writes()) != 0 {
		t.Error("short replacement reached the address register")
	}
}

func TestDoubleBufferReset(t *testing.T) {
	db, sim, _, _ := startPingPong(t, 16)
	sim.SwitchTarget(5)
	s := db.Reset()
	if s.IsEnabled() || s.IsCheckedOut() {
		t.Error("stream not idle after Reset")
	}
	mustPanic(t, "Target after Reset", func() { db.Target() })
	req := mustRequest(t, Controller1, 5, 7, DAC1)
	tx, err := Start(s, req, make([]uint16, 2))
	if err != nil {
		t.Fatalf("single transfer after double-buffered one: %v", err)
	}
	cr := sim.Load(dmasim.StreamReg(5, dmasim.CR))
	if cr&(1<<crDBM_Pos) != 0 || cr&(1<<crCIRC_Pos) != 0 || cr&crCT != 0 {
		t.Errorf("CR = %#x still carries double buffer state", cr)
	}
	tx.Reset()
}
