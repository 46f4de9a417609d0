package serve

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/moqt/internal/wire"
)

func TestTrackGroupModeLatestGroupWins(t *testing.T) {
	t.Parallel()
	tw, tr := NewTrack()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	gw0, err := tw.CreateGroup(0, 0)
	if err != nil {
		t.Fatalf("create group 0: %v", err)
	}
	gw0.Close(nil)

	gw1, err := tw.CreateGroup(1, 0)
	if err != nil {
		t.Fatalf("create group 1: %v", err)
	}
	gw1.Close(nil)

	ev, err := tr.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Mode != ModeGroup || ev.Group.ID() != 1 {
		t.Fatalf("expected to observe latest group (1), got %+v", ev)
	}
}

func TestTrackCreateGroupDuplicateAndStale(t *testing.T) {
	t.Parallel()
	tw, _ := NewTrack()

	if _, err := tw.CreateGroup(5, 0); err != nil {
		t.Fatalf("create group 5: %v", err)
	}
	if _, err := tw.CreateGroup(5, 0); !wire.IsError(err, wire.KindDuplicate) {
		t.Fatalf("expected KindDuplicate, got %v", err)
	}
	gw, err := tw.CreateGroup(3, 0)
	if gw != nil || err != nil {
		t.Fatalf("expected silent drop of stale group, got writer=%v err=%v", gw, err)
	}
}

func TestTrackModeSwitchRejected(t *testing.T) {
	t.Parallel()
	tw, _ := NewTrack()

	if _, err := tw.CreateGroup(0, 0); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := tw.CreateStream(); !wire.IsError(err, wire.KindMode) {
		t.Fatalf("expected KindMode switching families, got %v", err)
	}
	if err := tw.WriteDatagram(DatagramInfo{}); !wire.IsError(err, wire.KindMode) {
		t.Fatalf("expected KindMode for datagram after group, got %v", err)
	}
}

func TestTrackStreamMode(t *testing.T) {
	t.Parallel()
	tw, tr := NewTrack()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sw, err := tw.CreateStream()
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	sw.Write([]byte("hi"))
	sw.Close(nil)

	ev, err := tr.Next(ctx)
	if err != nil || ev.Mode != ModeStream {
		t.Fatalf("expected stream event, got %+v err=%v", ev, err)
	}
	chunk, err := ev.Stream.Next(ctx)
	if err != nil || string(chunk) != "hi" {
		t.Fatalf("expected \"hi\", got %q err=%v", chunk, err)
	}
}

func TestTrackDatagramModeOverwritesLatest(t *testing.T) {
	t.Parallel()
	tw, tr := NewTrack()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := tw.WriteDatagram(DatagramInfo{GroupID: 0, ObjectID: 0, Payload: []byte("a")}); err != nil {
		t.Fatalf("write datagram: %v", err)
	}
	if err := tw.WriteDatagram(DatagramInfo{GroupID: 0, ObjectID: 1, Payload: []byte("b")}); err != nil {
		t.Fatalf("write datagram: %v", err)
	}

	ev, err := tr.Next(ctx)
	if err != nil || ev.Mode != ModeDatagram || string(ev.Datagram.Payload) != "b" {
		t.Fatalf("expected latest datagram b, got %+v err=%v", ev, err)
	}
}

func TestTrackCloseWakesReader(t *testing.T) {
	t.Parallel()
	tw, tr := NewTrack()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ev, err := tr.Next(ctx)
		if ev != nil || err != nil {
			t.Errorf("expected clean end, got ev=%+v err=%v", ev, err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	tw.Close(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader never woke on close")
	}
}
