package serve

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/moqt/internal/wire"
)

func TestBroadcastTrackAvailableImmediately(t *testing.T) {
	t.Parallel()
	bw, br := NewBroadcast([]string{"live", "camera1"})

	if _, err := bw.CreateTrack("video"); err != nil {
		t.Fatalf("create track: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := br.Track(ctx, "video"); err != nil {
		t.Fatalf("track: %v", err)
	}
}

func TestBroadcastTrackWaitsForPublisher(t *testing.T) {
	t.Parallel()
	bw, br := NewBroadcast([]string{"live"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := br.Track(ctx, "audio"); err != nil {
			t.Errorf("track: %v", err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := bw.CreateTrack("audio"); err != nil {
		t.Fatalf("create track: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never unblocked")
	}
}

func TestBroadcastDuplicateTrack(t *testing.T) {
	t.Parallel()
	bw, _ := NewBroadcast([]string{"live"})

	if _, err := bw.CreateTrack("video"); err != nil {
		t.Fatalf("create track: %v", err)
	}
	if _, err := bw.CreateTrack("video"); !wire.IsError(err, wire.KindDuplicate) {
		t.Fatalf("expected KindDuplicate, got %v", err)
	}
}

func TestBroadcastCloseWakesPendingRequest(t *testing.T) {
	t.Parallel()
	bw, br := NewBroadcast([]string{"live"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := br.Track(ctx, "never-published")
		if !wire.IsError(err, wire.KindNotFound) {
			t.Errorf("expected KindNotFound, got %v", err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	bw.Close(nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pending request never woke on close")
	}
}
