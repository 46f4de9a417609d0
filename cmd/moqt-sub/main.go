// Command moqt-sub dials a relay, subscribes to a track, and prints
// decoded objects as they arrive group by group.
//
// Grounded on moq-clock/src/clock.rs's Subscriber.run.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quic-go/webtransport-go"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/transport"
)

func main() {
	url := flag.String("url", "https://localhost:4443/moq", "relay WebTransport URL")
	namespace := flag.String("namespace", "clock", "namespace to subscribe within")
	name := flag.String("name", "seconds", "track name to subscribe to")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; cancel() }()

	d := webtransport.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	_, wtSession, err := d.Dial(ctx, *url, nil)
	if err != nil {
		slog.Error("dial failed", "error", err)
		os.Exit(1)
	}
	sess := transport.NewWebTransportSession(wtSession)

	moqSession, err := session.Dial(ctx, sess, *namespace, session.RoleSubscriber)
	if err != nil {
		slog.Error("handshake failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := moqSession.Run(ctx); err != nil {
			slog.Debug("session ended", "error", err)
		}
	}()

	sub, err := moqSession.Subscriber.Subscribe(ctx, []string{*namespace}, *name)
	if err != nil {
		slog.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug("unsubscribe failed", "error", err)
		}
	}()

	slog.Info("subscribed", "namespace", *namespace, "name", *name)
	printTrack(ctx, sub.Track)
}

func printTrack(ctx context.Context, track *serve.TrackReader) {
	for {
		ev, err := track.Next(ctx)
		if err != nil {
			slog.Info("track ended", "error", err)
			return
		}
		if ev == nil {
			return
		}
		switch ev.Mode {
		case serve.ModeGroup, serve.ModeObject:
			printGroup(ctx, ev.Group)
		case serve.ModeStream:
			printObject(ctx, ev.Stream)
		case serve.ModeDatagram:
			fmt.Println(string(ev.Datagram.Payload))
		}
	}
}

func printGroup(ctx context.Context, group *serve.GroupReader) {
	for {
		obj, err := group.Next(ctx)
		if err != nil {
			return
		}
		if obj == nil {
			return
		}
		printObject(ctx, obj)
	}
}

func printObject(ctx context.Context, obj *serve.ObjectReader) {
	var payload []byte
	for {
		chunk, err := obj.Next(ctx)
		if err != nil || chunk == nil {
			break
		}
		payload = append(payload, chunk...)
	}
	fmt.Println(string(payload))
}
