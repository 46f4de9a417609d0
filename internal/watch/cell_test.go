package watch

import (
	"testing"
	"time"
)

func TestCellReadWrite(t *testing.T) {
	t.Parallel()
	c := New(0)

	snap := c.Read()
	if snap.Value != 0 || snap.Closed {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	ok := c.Write(func(v *int) { *v = 7 })
	if !ok {
		t.Fatal("write on live cell should succeed")
	}

	select {
	case <-snap.Notify:
	case <-time.After(time.Second):
		t.Fatal("notify did not fire after write")
	}

	snap2 := c.Read()
	if snap2.Value != 7 || snap2.Version != 1 {
		t.Fatalf("unexpected snapshot after write: %+v", snap2)
	}
}

func TestCellDropWriterTerminates(t *testing.T) {
	t.Parallel()
	c := New("hello")

	snap := c.Read()
	c.DropWriter()

	select {
	case <-snap.Notify:
	case <-time.After(time.Second):
		t.Fatal("notify did not fire on termination")
	}

	if !c.Closed() {
		t.Fatal("cell should be closed")
	}
	if c.Write(func(v *string) { *v = "nope" }) {
		t.Fatal("write on terminated cell should fail")
	}

	// A read taken after termination observes a closed cell whose
	// notify channel is already closed (never blocks).
	late := c.Read()
	if !late.Closed {
		t.Fatal("snapshot taken after termination should report Closed")
	}
	select {
	case <-late.Notify:
	default:
		t.Fatal("notify on a terminated cell must already be closed")
	}
}

func TestCellMultipleWritersDropOrder(t *testing.T) {
	t.Parallel()
	c := New(0)
	c.AddWriter() // two live writers now

	c.DropWriter()
	if c.Closed() {
		t.Fatal("cell should stay open while one writer remains")
	}

	c.DropWriter()
	if !c.Closed() {
		t.Fatal("cell should close once the last writer drops")
	}
}

func TestCellNeverSpuriousWake(t *testing.T) {
	t.Parallel()
	c := New(0)
	snap := c.Read()

	select {
	case <-snap.Notify:
		t.Fatal("notify fired without a write or termination")
	case <-time.After(20 * time.Millisecond):
	}
}
