package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/Shadowner/Infrarust/internal/admission"
	"github.com/Shadowner/Infrarust/internal/config"
	"github.com/Shadowner/Infrarust/internal/events"
	"github.com/Shadowner/Infrarust/internal/motd"
	"github.com/Shadowner/Infrarust/internal/route"
	"github.com/Shadowner/Infrarust/internal/wire"
)

func newTestProxy(t *testing.T, servers []route.ServerConfig) *Proxy {
	t.Helper()
	reg := config.Registry{Servers: servers}
	return New(Deps{
		Log:     logr.Discard(),
		Admit:   admission.New(logr.Discard()),
		Events:  events.New(),
		Configs: config.NewStaticProvider(reg),
	})
}

func tcpAddr(ip string) net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: 54321}
}

func TestFilterChainSharesQuotaCounterAcrossConnections(t *testing.T) {
	sc := route.ServerConfig{
		ConfigID:     "c1",
		HostPatterns: []string{"mc.example.com"},
		Backends:     []route.Endpoint{{Address: "127.0.0.1:25566"}},
		Mode:         route.ModeOffline,
		Filter:       &route.FilterOverride{MaxConcurrentSessions: 1},
	}
	p := newTestProxy(t, []route.ServerConfig{sc})

	first := p.filterChain(&sc)
	first.SessionOpened()

	second := p.filterChain(&sc)
	if second == first {
		t.Fatal("expected a fresh Chain per connection")
	}
	if err := second.CheckConnect(tcpAddr("1.2.3.4")); err == nil {
		t.Fatal("expected second connection to be rejected by the shared quota counter")
	}

	first.SessionClosed()
	third := p.filterChain(&sc)
	if err := third.CheckConnect(tcpAddr("1.2.3.4")); err != nil {
		t.Fatalf("expected quota to free up after SessionClosed, got %v", err)
	}
}

func TestFillStatusFallsBackToSynthesizedTemplateWhenBackendUnreachable(t *testing.T) {
	sc := route.ServerConfig{
		ConfigID:     "c2",
		HostPatterns: []string{"mc.example.com"},
		Backends:     []route.Endpoint{{Address: "127.0.0.1:1"}}, // nothing listens here
		Mode:         route.ModeOffline,
		MOTDTemplates: map[string]route.MOTDTemplate{
			string(motd.StateUnreachable): {VersionName: "1.20", Text: "down"},
		},
	}
	p := newTestProxy(t, []route.ServerConfig{sc})
	synth := motd.Install(logr.Discard(), convertTemplates(sc.MOTDTemplates))

	payload, err := p.fillStatus(context.Background(), sc, wire.HandshakePeek{}, synth)
	if err != nil {
		t.Fatalf("fillStatus: %v", err)
	}
	if payload == "" {
		t.Fatal("expected a synthesized fallback payload")
	}
}

func TestDrainRemainingServesShuttingDownMOTD(t *testing.T) {
	sc := route.ServerConfig{
		ConfigID:     "c3",
		HostPatterns: []string{"mc.example.com"},
		Backends:     []route.Endpoint{{Address: "127.0.0.1:25566"}},
		Mode:         route.ModeOffline,
		MOTDTemplates: map[string]route.MOTDTemplate{
			string(motd.StateShuttingDown): {VersionName: "1.20", Text: "bye in ${seconds_remaining}s"},
		},
	}
	p := newTestProxy(t, []route.ServerConfig{sc})
	p.admit.Shutdown(5 * time.Second)

	remaining, draining := p.admit.DrainRemaining()
	if !draining {
		t.Fatal("expected draining after Shutdown")
	}
	synth := motd.Install(logr.Discard(), convertTemplates(sc.MOTDTemplates))
	body, ok := synth.Synthesize(motd.StateShuttingDown, remaining)
	if !ok {
		t.Fatal("expected a shutting_down template to synthesize")
	}
	if body == "" {
		t.Fatal("expected non-empty shutting_down payload")
	}
}
