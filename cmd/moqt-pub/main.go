// Command moqt-pub dials a relay and publishes a synthetic clock track:
// one group per minute, carrying the wall-clock time as successive
// object payloads. It exists to give the session engine and relay a
// runnable end-to-end example without pulling in real media ingest.
//
// Grounded on moq-clock/src/clock.rs's Publisher.run/send_segment.
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
	"time"

	"github.com/quic-go/webtransport-go"

	"github.com/zsiec/moqt/internal/catalog"
	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/transport"
)

func main() {
	url := flag.String("url", "https://localhost:4443/moq", "relay WebTransport URL")
	namespace := flag.String("namespace", "clock", "namespace to publish under")
	name := flag.String("name", "seconds", "track name to publish")
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

	moqSession, err := session.Dial(ctx, sess, *namespace, session.RolePublisher)
	if err != nil {
		slog.Error("handshake failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := moqSession.Run(ctx); err != nil {
			slog.Debug("session ended", "error", err)
		}
	}()

	bw, br := serve.NewBroadcast([]string{*namespace})
	if err := moqSession.Publisher.Publish([]string{*namespace}, br); err != nil {
		slog.Error("publish failed", "error", err)
		os.Exit(1)
	}

	tw, err := bw.CreateTrack(*name)
	if err != nil {
		slog.Error("create track failed", "error", err)
		os.Exit(1)
	}

	cat := catalog.New(*namespace)
	cat.Tracks = append(cat.Tracks, catalog.Track{
		Name: *name,
		SelectionParams: catalog.SelectionParams{
			Codec: "text/plain",
		},
	})
	if err := catalog.Publish(bw, cat); err != nil {
		slog.Error("catalog publish failed", "error", err)
		os.Exit(1)
	}

	slog.Info("publishing clock track", "namespace", *namespace, "name", *name)
	runClock(ctx, tw)
}

// runClock publishes one group per minute, each holding one object per
// elapsed second carrying "YYYY-MM-DD HH:MM:SS".
func runClock(ctx context.Context, tw *serve.TrackWriter) {
	start := time.Now()
	var groupID uint64

	for {
		gw, err := tw.CreateGroup(groupID, 128)
		if err != nil {
			slog.Warn("create group failed", "error", err)
			return
		}
		groupID++

		minuteStart := start.Truncate(time.Minute)
		nextMinute := minuteStart.Add(time.Minute)

		go sendMinute(ctx, gw, start.Truncate(time.Second))

		select {
		case <-time.After(time.Until(nextMinute)):
			start = nextMinute
		case <-ctx.Done():
			return
		}
	}
}

func sendMinute(ctx context.Context, gw *serve.GroupWriter, from time.Time) {
	defer gw.Close(nil)
	t := from
	for t.Minute() == from.Minute() {
		ow, err := gw.CreateObject(nil)
		if err != nil {
			return
		}
		payload := t.Format("2006-01-02 15:04:05")
		if err := ow.Write([]byte(payload)); err != nil {
			return
		}
		ow.Close(nil)
		fmt.Println(payload)

		select {
		case <-time.After(time.Second):
			t = t.Add(time.Second)
		case <-ctx.Done():
			return
		}
	}
}
