package config

import (
	"testing"
	"time"

	"github.com/Shadowner/Infrarust/internal/route"
)

func TestProxyConfigDefaults(t *testing.T) {
	var c ProxyConfig
	if got := c.InitialReadDeadline(); got != 10*time.Second {
		t.Fatalf("default InitialReadDeadline = %v, want 10s", got)
	}
	if got := c.DrainGrace(); got != 2*time.Second {
		t.Fatalf("default DrainGrace = %v, want 2s", got)
	}

	var sc StatusCacheOptions
	if got := sc.TTL(); got != 30*time.Second {
		t.Fatalf("default status cache TTL = %v, want 30s", got)
	}
}

func TestStaticProviderReturnsSnapshotAndClosesWatch(t *testing.T) {
	reg := Registry{
		Proxy:   ProxyConfig{ListenAddress: ":25565"},
		Servers: []route.ServerConfig{{ConfigID: "a"}},
	}
	p := NewStaticProvider(reg)

	if got := p.Current().Proxy.ListenAddress; got != ":25565" {
		t.Fatalf("Current().Proxy.ListenAddress = %q, want :25565", got)
	}

	done := make(chan struct{})
	ch := p.Watch(done)
	close(done)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected watch channel to close with no value")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel did not close")
	}
}
