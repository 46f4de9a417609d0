// Command moqt-relay runs a MoQT relay node: it accepts WebTransport
// sessions, serves SUBSCRIBEs for namespaces registered with its
// relay.Relay or proxied from the remote origin the directory names, and
// exposes that origin directory over HTTP. An ANNOUNCE from a connected
// session is acknowledged but not added to the relay's registry or the
// directory, so a namespace announced to this relay is not served to
// its other sessions.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moqt/internal/certs"
	"github.com/zsiec/moqt/internal/originapi"
	"github.com/zsiec/moqt/internal/relay"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/transport"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("generating self-signed certificate")
	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate cert", "error", err)
		os.Exit(1)
	}
	slog.Info("certificate generated", "fingerprint", cert.FingerprintBase64(), "expires", cert.NotAfter.Format(time.RFC3339))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	bindAddr := envOr("BIND_ADDR", ":4443")
	apiAddr := envOr("API_ADDR", ":4444")
	selfURL := envOr("SELF_URL", "https://localhost"+bindAddr)

	directory := originapi.NewDirectory(nil)
	api := originapi.NewClient("http://localhost" + apiAddr)

	rl := relay.NewRelay(selfURL, api, dialRemote, nil)

	slog.Info("moqt-relay starting", "version", version, "bind", bindAddr, "api", apiAddr, "self_url", selfURL)

	g, ctx := errgroup.WithContext(ctx)

	apiSrv := &http.Server{Addr: apiAddr, Handler: directory}
	g.Go(func() error {
		slog.Info("origin directory listening", "addr", apiAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("origin directory: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return apiSrv.Shutdown(shutdownCtx)
	})

	wtMux := http.NewServeMux()
	wtSrv := &webtransport.Server{
		H3: http3.Server{
			Addr:      bindAddr,
			Handler:   wtMux,
			TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert.TLSCert}},
			QUICConfig: &quic.Config{
				MaxIdleTimeout: 30 * time.Second,
				Allow0RTT:      true,
			},
		},
		CheckOrigin: func(_ *http.Request) bool { return true },
	}
	wtMux.HandleFunc("/moq", func(w http.ResponseWriter, r *http.Request) {
		handleMoQ(r.Context(), wtSrv, w, r, rl)
	})

	g.Go(func() error {
		slog.Info("WebTransport relay listening", "addr", bindAddr)
		if err := wtSrv.ListenAndServe(); err != nil {
			return fmt.Errorf("webtransport server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return wtSrv.Close()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("relay error", "error", err)
		os.Exit(1)
	}
}

func handleMoQ(ctx context.Context, wtSrv *webtransport.Server, w http.ResponseWriter, r *http.Request, rl *relay.Relay) {
	wtSession, err := wtSrv.Upgrade(w, r)
	if err != nil {
		slog.Error("webtransport upgrade failed", "error", err)
		return
	}

	sess := transport.NewWebTransportSession(wtSession)

	control, err := sess.AcceptStream(r.Context())
	if err != nil {
		slog.Error("failed to accept control stream", "error", err)
		sess.CloseWithError(0, "control stream error")
		return
	}

	moqSession, err := session.Accept(r.Context(), sess, control, session.RoleBoth)
	if err != nil {
		slog.Warn("moq handshake failed", "error", err)
		sess.CloseWithError(0, "setup failed")
		return
	}

	id := fmt.Sprintf("%s-%s", moqSession.Path, r.RemoteAddr)
	rl.AddSession(id, moqSession)
	defer rl.RemoveSession(id)

	slog.Info("moq session accepted", "id", id, "path", moqSession.Path, "role", moqSession.Role.String())
	if err := moqSession.Run(ctx); err != nil {
		slog.Debug("moq session ended", "id", id, "error", err)
	}
}

func dialRemote(ctx context.Context, url string) (transport.Session, error) {
	d := webtransport.Dialer{}
	_, wtSession, err := d.Dial(ctx, url+"/moq", nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return transport.NewWebTransportSession(wtSession), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
