package session

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/wire"
)

// wiring mimics what Session.Run does per role, but kept to the single
// control message family each side actually needs for these tests so a
// failure in one role's loop doesn't mask the other's.

func pumpPublisherControl(ctx context.Context, pub *Publisher, r *bufio.Reader) {
	for {
		msgType, payload, err := wire.ReadControlMsg(r)
		if err != nil {
			return
		}
		pub.HandleControl(ctx, msgType, payload)
	}
}

func pumpSubscriberControl(sub *Subscriber, r *bufio.Reader) {
	for {
		msgType, payload, err := wire.ReadControlMsg(r)
		if err != nil {
			return
		}
		sub.HandleControl(msgType, payload)
	}
}

func pumpSubscriberUniStreams(ctx context.Context, sub *Subscriber, sess *fakeSession) {
	for {
		stream, err := sess.AcceptUniStream(ctx)
		if err != nil {
			return
		}
		go sub.HandleUniStream(ctx, stream)
	}
}

func newWiredPair(ctx context.Context) (*Publisher, *Subscriber) {
	sessA, sessB := newFakeSessionPair(ctx)
	connA, connB := net.Pipe()

	pub := NewPublisher(sessA, pipeStream{connA})
	sub := NewSubscriber(sessB, pipeStream{connB})

	go pumpPublisherControl(ctx, pub, bufio.NewReader(pipeStream{connA}))
	go pumpSubscriberControl(sub, bufio.NewReader(pipeStream{connB}))
	go pumpSubscriberUniStreams(ctx, sub, sessB)

	return pub, sub
}

func TestPublisherSubscriberGroupDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, sub := newWiredPair(ctx)

	bw, br := serve.NewBroadcast([]string{"live", "alice"})
	if err := pub.Publish([]string{"live", "alice"}, br); err != nil {
		t.Fatalf("publish: %v", err)
	}

	tw, err := bw.CreateTrack("video")
	if err != nil {
		t.Fatalf("create track: %v", err)
	}

	subCh := make(chan *Subscription, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := sub.Subscribe(ctx, []string{"live", "alice"}, "video")
		if err != nil {
			errCh <- err
			return
		}
		subCh <- s
	}()

	var tr *serve.TrackReader
	select {
	case s := <-subCh:
		tr = s.Track
	case err := <-errCh:
		t.Fatalf("subscribe: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscribe")
	}

	gw, err := tw.CreateGroup(0, 128)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	ow, err := gw.CreateObject(nil)
	if err != nil {
		t.Fatalf("create object: %v", err)
	}
	if err := ow.Write([]byte("hello")); err != nil {
		t.Fatalf("write object: %v", err)
	}
	ow.Close(nil)
	gw.Close(nil)

	ev, err := tr.Next(ctx)
	if err != nil {
		t.Fatalf("track next: %v", err)
	}
	if ev.Mode != serve.ModeGroup && ev.Mode != serve.ModeObject {
		t.Fatalf("expected group/object mode, got %v", ev.Mode)
	}

	obj, err := ev.Group.Next(ctx)
	if err != nil {
		t.Fatalf("group next: %v", err)
	}
	payload, err := obj.Next(ctx)
	if err != nil {
		t.Fatalf("object next: %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
}

func TestSubscribeUnknownNamespaceFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, sub := newWiredPair(ctx)

	_, err := sub.Subscribe(ctx, []string{"nope"}, "video")
	if err == nil {
		t.Fatal("expected error for unpublished namespace")
	}
}
