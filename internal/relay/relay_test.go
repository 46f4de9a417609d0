package relay

import (
	"context"
	"testing"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/transport"
	"github.com/zsiec/moqt/internal/wire"
)

func fakeDialer(ctx context.Context, url string) (transport.Session, error) {
	return nil, nil
}

type fakeOriginClient struct {
	origins map[string]string
	sets    []string
	deletes []string
}

func newFakeOriginClient() *fakeOriginClient {
	return &fakeOriginClient{origins: make(map[string]string)}
}

func (f *fakeOriginClient) GetOrigin(ctx context.Context, namespace string) (string, bool, error) {
	url, ok := f.origins[namespace]
	return url, ok, nil
}

func (f *fakeOriginClient) SetOrigin(ctx context.Context, namespace, url string) error {
	f.origins[namespace] = url
	f.sets = append(f.sets, namespace)
	return nil
}

func (f *fakeOriginClient) DeleteOrigin(ctx context.Context, namespace string) error {
	delete(f.origins, namespace)
	f.deletes = append(f.deletes, namespace)
	return nil
}

func TestRelayPublishRegistersOriginAndRegistry(t *testing.T) {
	t.Parallel()
	api := newFakeOriginClient()
	rl := NewRelay("https://relay-a.example:4443", api, nil, nil)

	_, reader := serve.NewBroadcast([]string{"alice", "camera1"})
	if err := rl.Publish(context.Background(), []string{"alice", "camera1"}, reader); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got, ok := rl.registry.Lookup("alice/camera1"); !ok || got != reader {
		t.Fatalf("registry lookup = (%v, %v), want the published reader", got, ok)
	}
	if len(api.sets) != 1 || api.sets[0] != "alice/camera1" {
		t.Fatalf("origin directory sets = %v, want [alice/camera1]", api.sets)
	}

	rl.Unpublish(context.Background(), []string{"alice", "camera1"})
	if _, ok := rl.registry.Lookup("alice/camera1"); ok {
		t.Fatal("registry lookup should fail after Unpublish")
	}
	if len(api.deletes) != 1 || api.deletes[0] != "alice/camera1" {
		t.Fatalf("origin directory deletes = %v, want [alice/camera1]", api.deletes)
	}
}

func TestRelayPublishDuplicateFails(t *testing.T) {
	t.Parallel()
	rl := NewRelay("https://relay-a.example:4443", nil, nil, nil)
	_, reader := serve.NewBroadcast([]string{"alice", "camera1"})

	if err := rl.Publish(context.Background(), []string{"alice", "camera1"}, reader); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	err := rl.Publish(context.Background(), []string{"alice", "camera1"}, reader)
	if !wire.IsError(err, wire.KindDuplicate) {
		t.Fatalf("expected KindDuplicate, got %v", err)
	}
}

func TestResolveRemoteNoOriginConfigured(t *testing.T) {
	t.Parallel()
	rl := NewRelay("https://relay-a.example:4443", nil, nil, nil)
	_, err := rl.resolveRemote(context.Background(), []string{"bob", "camera2"})
	if !wire.IsError(err, wire.KindNotFound) {
		t.Fatalf("expected KindNotFound with no origin client, got %v", err)
	}
}

func TestResolveRemoteUnknownNamespace(t *testing.T) {
	t.Parallel()
	api := newFakeOriginClient()
	rl := NewRelay("https://relay-a.example:4443", api, fakeDialer, nil)
	_, err := rl.resolveRemote(context.Background(), []string{"bob", "camera2"})
	if !wire.IsError(err, wire.KindNotFound) {
		t.Fatalf("expected KindNotFound for unregistered namespace, got %v", err)
	}
}

func TestResolveRemoteFoundReturnsProxy(t *testing.T) {
	t.Parallel()
	api := newFakeOriginClient()
	api.origins["bob/camera2"] = "https://relay-b.example:4443"
	rl := NewRelay("https://relay-a.example:4443", api, fakeDialer, nil)

	source, err := rl.resolveRemote(context.Background(), []string{"bob", "camera2"})
	if err != nil {
		t.Fatalf("resolveRemote: %v", err)
	}
	rb, ok := source.(*RemoteBroadcast)
	if !ok {
		t.Fatalf("resolveRemote returned %T, want *RemoteBroadcast", source)
	}
	if rb.url != "https://relay-b.example:4443" {
		t.Fatalf("proxy url = %q, want relay-b URL", rb.url)
	}
}
