package serve

import (
	"context"
	"testing"
	"time"
)

func TestGroupObjectsInOrder(t *testing.T) {
	t.Parallel()
	gw, gr := NewGroup(5, 1)

	ow1, _ := gw.CreateObject(nil)
	ow1.Write([]byte("a"))
	ow1.Close(nil)

	ow2, _ := gw.CreateObject(nil)
	ow2.Write([]byte("b"))
	ow2.Close(nil)

	gw.Close(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	or1, err := gr.Next(ctx)
	if err != nil || or1.Header().ObjectID != 0 {
		t.Fatalf("expected object 0 first, got %+v err=%v", or1, err)
	}
	or2, err := gr.Next(ctx)
	if err != nil || or2.Header().ObjectID != 1 {
		t.Fatalf("expected object 1 second, got %+v err=%v", or2, err)
	}
	last, err := gr.Next(ctx)
	if last != nil || err != nil {
		t.Fatalf("expected clean end, got %+v err=%v", last, err)
	}
}

func TestGroupReaderBlocksUntilObjectArrives(t *testing.T) {
	t.Parallel()
	gw, gr := NewGroup(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		or, err := gr.Next(ctx)
		if err != nil || or == nil {
			t.Errorf("unexpected result: %+v err=%v", or, err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	ow, _ := gw.CreateObject(nil)
	ow.Close(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader never woke up")
	}
}

func TestGroupCreateObjectAfterCloseFails(t *testing.T) {
	t.Parallel()
	gw, _ := NewGroup(0, 0)
	gw.Close(nil)

	if _, err := gw.CreateObject(nil); err == nil {
		t.Fatal("expected error creating object on closed group")
	}
}
