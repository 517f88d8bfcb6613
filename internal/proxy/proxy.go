// Package proxy wires every other internal package into the accept
// loop described by spec.md §2: Handshake Peek -> Route Resolver -> Filter
// Chain -> Status/Login dispatch -> Proxy Mode -> Session Supervisor.
// It also exposes the introspection surface named in SPEC_FULL.md §4.P.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"time"

	"github.com/go-logr/logr"

	"github.com/Shadowner/Infrarust/internal/admission"
	"github.com/Shadowner/Infrarust/internal/config"
	"github.com/Shadowner/Infrarust/internal/crypto"
	"github.com/Shadowner/Infrarust/internal/events"
	"github.com/Shadowner/Infrarust/internal/filter"
	"github.com/Shadowner/Infrarust/internal/ids"
	"github.com/Shadowner/Infrarust/internal/mode"
	"github.com/Shadowner/Infrarust/internal/motd"
	"github.com/Shadowner/Infrarust/internal/perrors"
	"github.com/Shadowner/Infrarust/internal/proxyproto"
	"github.com/Shadowner/Infrarust/internal/route"
	"github.com/Shadowner/Infrarust/internal/servermanager"
	"github.com/Shadowner/Infrarust/internal/session"
	"github.com/Shadowner/Infrarust/internal/sessionservice"
	"github.com/Shadowner/Infrarust/internal/statuscache"
	"github.com/Shadowner/Infrarust/internal/wire"
)

// RouteSummary is the introspectable shape of one configured route.
type RouteSummary struct {
	ConfigID     string
	HostPatterns []string
	Mode         route.Mode
	Sessions     int
}

// Proxy is the top-level process: one listener, one route registry, and
// the process-wide singletons every session shares read-only handles to.
type Proxy struct {
	log     logr.Logger
	admit   *admission.Controller
	events  events.Manager
	configs config.Provider

	registry *route.Registry
	keys     *crypto.KeyPair
	sessions *sessionservice.Client

	globalRateLimiter *filter.RateLimiter
	bans              filter.BanStore

	statusCaches map[string]*statuscache.Cache
	idleTimers   map[string]*admission.IdleTimer
	managers     map[string]servermanager.Provider
	routeQuotas  map[string]*int64

	index *sessionIndex

	listener net.Listener
}

// Deps bundles the process-wide collaborators New needs; fields left
// nil get a sensible default (e.g. no bans) rather than failing.
type Deps struct {
	Log      logr.Logger
	Admit    *admission.Controller
	Events   events.Manager
	Configs  config.Provider
	Keys     *crypto.KeyPair
	Sessions *sessionservice.Client
	Bans     filter.BanStore
}

// New constructs a Proxy from its configuration snapshot and process-wide
// dependencies; it does not yet listen.
func New(deps Deps) *Proxy {
	cur := deps.Configs.Current()

	p := &Proxy{
		log:               deps.Log,
		admit:             deps.Admit,
		events:            deps.Events,
		configs:           deps.Configs,
		registry:          route.NewRegistry(),
		keys:              deps.Keys,
		sessions:          deps.Sessions,
		globalRateLimiter: filter.NewRateLimiter(requestsPerMinuteFromConfig(cur.Proxy), burstFromConfig(cur.Proxy)),
		bans:              deps.Bans,
		statusCaches:      map[string]*statuscache.Cache{},
		idleTimers:        map[string]*admission.IdleTimer{},
		managers:          map[string]servermanager.Provider{},
		routeQuotas:       map[string]*int64{},
		index:             newSessionIndex(),
	}

	_ = p.registry.Replace(cur.Servers)
	for _, sc := range cur.Servers {
		p.installRoute(sc, cur.Proxy)
	}

	if p.admit != nil {
		p.admit.Register(p)
	}
	return p
}

func requestsPerMinuteFromConfig(c config.ProxyConfig) int {
	if c.RateLimiter.RequestsPerMinute <= 0 {
		return 60
	}
	return c.RateLimiter.RequestsPerMinute
}

func burstFromConfig(c config.ProxyConfig) int {
	if c.RateLimiter.BurstSize <= 0 {
		return 10
	}
	return c.RateLimiter.BurstSize
}

func (p *Proxy) installRoute(sc route.ServerConfig, pc config.ProxyConfig) {
	ttl := pc.StatusCache.TTL()
	maxEntries := pc.StatusCache.MaxEntries
	if sc.StatusCache != nil {
		if sc.StatusCache.TTL > 0 {
			ttl = sc.StatusCache.TTL
		}
		if sc.StatusCache.MaxEntries > 0 {
			maxEntries = sc.StatusCache.MaxEntries
		}
	}
	p.statusCaches[sc.ConfigID] = statuscache.New(ttl, maxEntries)
	var quota int64
	p.routeQuotas[sc.ConfigID] = &quota

	if sc.ServerManager != nil && sc.ServerManager.EmptyShutdownSeconds > 0 {
		configID := sc.ConfigID
		mgr := p.managerFor(sc.ServerManager.Provider)
		externalID := sc.ServerManager.ExternalID
		p.idleTimers[sc.ConfigID] = admission.NewIdleTimer(
			time.Duration(sc.ServerManager.EmptyShutdownSeconds)*time.Second,
			func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_ = mgr.Stop(ctx, externalID)
				p.log.Info("stopped idle backend", "config_id", configID)
			},
		)
	}
}

func (p *Proxy) managerFor(name string) servermanager.Provider {
	if mgr, ok := p.managers[name]; ok {
		return mgr
	}
	var mgr servermanager.Provider
	switch name {
	case "pterodactyl":
		mgr = servermanager.NewPterodactyl()
	case "crafty":
		mgr = servermanager.NewCrafty()
	case "docker":
		mgr = servermanager.NewDocker()
	default:
		mgr = servermanager.NewLocal()
	}
	p.managers[name] = mgr
	return mgr
}

// Serve accepts connections on addr until ctx is canceled.
func (p *Proxy) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return perrors.Wrap(perrors.Internal, "listening", err)
	}

	cur := p.configs.Current()
	if cur.Proxy.ProxyProtocol.ReceiveEnabled {
		allowed := proxyproto.AllowedVersions{}
		for _, v := range cur.Proxy.ProxyProtocol.AllowedVersions {
			if v == 1 {
				allowed.V1 = true
			}
			if v == 2 {
				allowed.V2 = true
			}
		}
		ln = proxyproto.Listener(ln, cur.Proxy.ProxyProtocol.ReceiveTimeout(), allowed)
	}
	p.listener = ln

	p.log.Info("listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return perrors.Wrap(perrors.Internal, "accept failed", err)
			}
		}
		go p.handleConn(ctx, conn)
	}
}

// Drain implements admission.Drainable: it kicks every indexed session,
// then waits up to grace for the session index to empty before the
// caller moves on.
func (p *Proxy) Drain(ctx context.Context, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for _, s := range p.index.all() {
		s.Kick()
	}
	for time.Now().Before(deadline) {
		if p.index.count() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// handleConn runs one connection's full lifecycle: peek, resolve,
// filter, dispatch, and (on success) hands off to the Session
// Supervisor's forwarders. A panic anywhere in this chain is recovered
// so one bad connection never takes the listener down, grounded on the
// same defer-recover idiom a minimal TCP relay uses around its own
// per-connection handler.
func (p *Proxy) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(nil, "recovered panic in connection handler", "panic", r)
			_ = conn.Close()
		}
	}()

	peek, err := wire.PeekHandshake(ctx, conn, p.configs.Current().Proxy.InitialReadDeadline())
	if err != nil {
		_ = conn.Close()
		return
	}

	p.events.Fire(&events.HandshakeEvent{RemoteAddr: conn.RemoteAddr(), Handshake: peek.Handshake})

	host := peek.Handshake.HostForRouting()
	sc, err := p.registry.Resolve(host)
	matched := err == nil
	p.events.Fire(&events.RouteResolvedEvent{RemoteAddr: conn.RemoteAddr(), Host: host, ConfigID: sc.ConfigID, Matched: matched})
	if !matched {
		p.respondNoRoute(conn, peek)
		return
	}

	chain := p.filterChain(&sc)
	if err := chain.CheckConnect(conn.RemoteAddr()); err != nil {
		_ = conn.Close()
		return
	}

	if peek.Handshake.NextState == wire.NextStatus {
		p.handleStatus(ctx, conn, peek, sc)
		return
	}

	p.handleLogin(ctx, conn, peek, sc, chain)
}

// filterChain builds a Chain for this connection. It is deliberately
// cheap to allocate per connection — only the live-session counter behind
// MaxConcurrentSessions is shared across calls for the same route, via
// routeQuotas, so the quota is actually enforced across connections
// instead of resetting with every Chain.
func (p *Proxy) filterChain(sc *route.ServerConfig) *filter.Chain {
	c := &filter.Chain{Bans: p.bans, RateLimiter: p.globalRateLimiter}
	if sc != nil && sc.Filter != nil {
		c.AllowedIPs = sc.Filter.AllowedIPs
		c.DeniedIPs = sc.Filter.DeniedIPs
		c.MaxConcurrentSessions = int64(sc.Filter.MaxConcurrentSessions)
		c.LiveSessions = p.routeQuotas[sc.ConfigID]
	}
	return c
}

func (p *Proxy) respondNoRoute(conn net.Conn, peek wire.HandshakePeek) {
	defer conn.Close()
	if peek.Handshake.NextState != wire.NextStatus {
		return
	}
	// An unmatched host is closed without writing anything, in both the
	// status and the login sub-state: no MOTD and no login disconnect is
	// sent.
}

// handleStatus answers the status sub-state. Passthrough routes are byte-
// shoveled straight to the backend (the backend owns its own status
// protocol entirely); every other mode answers locally, either with the
// backend's real server-list-ping (cached per route/protocol) or, during
// a drain, with the shutting_down countdown MOTD, or, for a backend that
// isn't actually reachable, the route's configured fallback template.
func (p *Proxy) handleStatus(ctx context.Context, conn net.Conn, peek wire.HandshakePeek, sc route.ServerConfig) {
	defer conn.Close()

	if sc.Mode == route.ModePassthrough {
		p.relayStatusPassthrough(ctx, conn, peek, sc)
		return
	}

	synth := motd.Install(p.log, convertTemplates(sc.MOTDTemplates))

	// The shutting_down countdown changes every second, so it is served
	// fresh on every request rather than through the status cache.
	if p.admit != nil {
		if remaining, draining := p.admit.DrainRemaining(); draining {
			if body, ok := synth.Synthesize(motd.StateShuttingDown, remaining); ok {
				p.relayStatusResponse(conn, body)
				return
			}
		}
	}

	cache := p.statusCaches[sc.ConfigID]
	key := statuscache.Key{ConfigID: sc.ConfigID, ProtocolVersion: peek.Handshake.ProtocolVersion}
	payload, err := cache.GetOrFill(key, func() (string, error) {
		return p.fillStatus(ctx, sc, peek, synth)
	})
	if err != nil {
		return
	}

	p.relayStatusResponse(conn, payload)
}

// fillStatus is the status cache's producer: it dials the backend for its
// real server-list-ping whenever the backend is believed reachable
// (running, or no server manager configured to say otherwise), and only
// falls back to the route's synthesized template once that dial actually
// fails or the manager reports a non-running state.
func (p *Proxy) fillStatus(ctx context.Context, sc route.ServerConfig, peek wire.HandshakePeek, synth *motd.Synthesizer) (string, error) {
	state := p.backendStateFor(sc)

	if state == motd.StateRunning || state == motd.StateUnknown {
		if payload, err := p.fetchBackendStatus(ctx, sc, peek); err == nil {
			return payload, nil
		}
		if state == motd.StateRunning {
			state = motd.StateUnableStatus
		} else {
			state = motd.StateUnreachable
		}
	}

	body, ok := synth.Synthesize(state, 0)
	if !ok {
		return "", perrors.New(perrors.BackendUnreachable, "no motd template for state")
	}
	return body, nil
}

// fetchBackendStatus dials sc's backend, replays the captured handshake
// (already carrying next_state=status), sends a status_request, and
// returns the backend's status_response JSON payload verbatim.
func (p *Proxy) fetchBackendStatus(ctx context.Context, sc route.ServerConfig, peek wire.HandshakePeek) (string, error) {
	backend, err := p.dialBackend(ctx, sc)
	if err != nil {
		return "", err
	}
	defer backend.Close()

	if _, err := io.Copy(backend, peek.Replay()); err != nil {
		return "", perrors.Wrap(perrors.BackendUnreachable, "replaying handshake for status", err)
	}

	w := wire.NewWriter(backend)
	if err := w.WritePacket(0x00, nil); err != nil {
		return "", perrors.Wrap(perrors.BackendUnreachable, "writing status_request", err)
	}

	r := wire.NewReader(backend)
	pkt, err := r.ReadPacket()
	if err != nil {
		return "", perrors.Wrap(perrors.BackendUnreachable, "reading status_response", err)
	}
	payload, err := wire.ReadString(bufio.NewReader(bytes.NewReader(pkt.Data)))
	if err != nil {
		return "", perrors.Wrap(perrors.ProtocolMalformed, "decoding status_response body", err)
	}
	return payload, nil
}

// relayStatusResponse reads the client's status_request, answers with
// payload, then relays a single ping/pong exchange verbatim if the client
// sends one; a client that disconnects without pinging is not an error.
func (p *Proxy) relayStatusResponse(conn net.Conn, payload string) {
	r := wire.NewReader(conn)
	if _, err := r.ReadPacket(); err != nil {
		return
	}

	w := wire.NewWriter(conn)
	if err := w.WritePacket(0x00, encodeStatusResponse(payload)); err != nil {
		return
	}

	pkt, err := r.ReadPacket()
	if err != nil {
		return
	}
	_ = w.WritePacket(pkt.ID, pkt.Data)
}

// relayStatusPassthrough dials the backend, replays the captured
// handshake, and then splices raw bytes in both directions until either
// side closes — Passthrough routes never parse or answer status locally.
func (p *Proxy) relayStatusPassthrough(ctx context.Context, conn net.Conn, peek wire.HandshakePeek, sc route.ServerConfig) {
	backend, err := p.dialBackend(ctx, sc)
	if err != nil {
		return
	}
	defer backend.Close()

	outcome, err := mode.Passthrough(ctx, conn, peek.Replay(), backend)
	if err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(outcome.BackendConn, outcome.ClientConn)
		close(done)
	}()
	_, _ = io.Copy(outcome.ClientConn, outcome.BackendConn)
	<-done
}

func (p *Proxy) backendStateFor(sc route.ServerConfig) motd.BackendState {
	if sc.ServerManager == nil {
		return motd.StateUnknown
	}
	mgr := p.managerFor(sc.ServerManager.Provider)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	state, err := mgr.Status(ctx, sc.ServerManager.ExternalID)
	if err != nil {
		return motd.StateUnableStatus
	}
	switch state {
	case servermanager.StateRunning:
		return motd.StateRunning
	case servermanager.StateStarting:
		return motd.StateStarting
	case servermanager.StateStopping:
		return motd.StateStopping
	case servermanager.StateStopped:
		return motd.StateStopped
	case servermanager.StateCrashed:
		return motd.StateCrashed
	default:
		return motd.StateUnknown
	}
}

func (p *Proxy) handleLogin(ctx context.Context, conn net.Conn, peek wire.HandshakePeek, sc route.ServerConfig, chain *filter.Chain) {
	backend, err := p.dialBackend(ctx, sc)
	if err != nil {
		_ = conn.Close()
		return
	}

	var outcome mode.Outcome
	switch sc.Mode {
	case route.ModePassthrough:
		outcome, err = mode.Passthrough(ctx, conn, peek.Replay(), backend)
	case route.ModeOffline:
		outcome, err = mode.Offline(ctx, conn, peek.Replay(), backend, 0)
	case route.ModeClientOnly:
		outcome, err = mode.ClientOnly(ctx, conn, peek.Replay(), backend, mode.ClientOnlyDeps{
			Keys: p.keys, Sessions: p.sessions, Log: p.log,
		})
	case route.ModeServerOnly:
		outcome, err = mode.ServerOnly(ctx, conn, peek.Replay(), backend, mode.ServerOnlyDeps{Log: p.log})
	default:
		err = perrors.New(perrors.Internal, "unsupported mode reached session dispatch")
	}
	if err != nil {
		p.log.V(1).Info("login failed", "config_id", sc.ConfigID, "error", err.Error())
		_ = conn.Close()
		_ = backend.Close()
		return
	}

	if outcome.Username != "" {
		if err := chain.CheckLogin(outcome.Username, ids.FormatUUID(outcome.UUID)); err != nil {
			_ = outcome.ClientConn.Close()
			_ = outcome.BackendConn.Close()
			return
		}
	}

	sessID := ids.NewSessionID()
	sess := session.New(sessID, sc.ConfigID, conn.RemoteAddr(), p.log)
	sess.SetUsername(outcome.Username)

	p.events.Fire(&events.LoginStartEvent{SessionID: sessID, Username: outcome.Username, UUID: ids.FormatUUID(outcome.UUID)})

	chain.SessionOpened()
	if timer, ok := p.idleTimers[sc.ConfigID]; ok {
		timer.SessionOpened()
	}
	p.index.add(sc.ConfigID, sess)

	var runErr error
	defer func() {
		chain.SessionClosed()
		p.index.remove(sc.ConfigID, sess.ID)
		if timer, ok := p.idleTimers[sc.ConfigID]; ok && p.index.countFor(sc.ConfigID) == 0 {
			timer.SessionClosed()
		}
		info := sess.Info()
		cause := ""
		if runErr != nil {
			cause = runErr.Error()
		}
		p.events.Fire(&events.SessionEndedEvent{
			SessionID: sessID, ConfigID: sc.ConfigID,
			BytesIn: info.Metrics.BytesClientToBackend, BytesOut: info.Metrics.BytesBackendToClient,
			FailureCause: cause,
		})
	}()

	runErr = sess.RunForwarders(ctx, outcome.ClientConn, outcome.BackendConn, p.configs.Current().Proxy.ForwarderBufferBytes)
}

func (p *Proxy) dialBackend(ctx context.Context, sc route.ServerConfig) (net.Conn, error) {
	if len(sc.Backends) == 0 {
		return nil, perrors.New(perrors.BackendUnreachable, "route has no backends")
	}
	if sc.ServerManager != nil {
		mgr := p.managerFor(sc.ServerManager.Provider)
		state, _ := mgr.Status(ctx, sc.ServerManager.ExternalID)
		if state != servermanager.StateRunning {
			if err := servermanager.WaitUntilRunning(ctx, mgr, sc.ServerManager.ExternalID, servermanager.DefaultWakeupDeadline); err != nil {
				return nil, err
			}
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", sc.Backends[0].Address)
	if err != nil {
		return nil, perrors.Wrap(perrors.BackendUnreachable, "dialing backend", err)
	}

	if sc.ProxyProtocolOut.Enabled {
		if err := proxyproto.WriteHeader(ctx, conn, sc.ProxyProtocolOut.Version, conn.LocalAddr(), conn.RemoteAddr()); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// encodeStatusResponse encodes the status-response packet body: a single
// VarInt-length-prefixed UTF-8 string carrying the JSON document.
func encodeStatusResponse(jsonPayload string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteString(&buf, jsonPayload)
	return buf.Bytes()
}

func convertTemplates(in map[string]route.MOTDTemplate) map[motd.BackendState]motd.Template {
	out := make(map[motd.BackendState]motd.Template, len(in))
	for k, v := range in {
		out[motd.BackendState(k)] = motd.Template{
			VersionName: v.VersionName, ProtocolVersion: v.ProtocolVersion,
			MaxPlayers: v.MaxPlayers, OnlinePlayers: v.OnlinePlayers,
			Text: v.Text, Favicon: v.Favicon, Sample: v.Sample,
		}
	}
	return out
}

// --- Introspection (SPEC_FULL.md §4.P) ---

func (p *Proxy) ListSessions() []session.Info {
	out := make([]session.Info, 0)
	for _, s := range p.index.all() {
		out = append(out, s.Info())
	}
	return out
}

func (p *Proxy) Kick(sessionID string) error {
	s := p.index.find(sessionID)
	if s == nil {
		return perrors.New(perrors.Internal, "no such session")
	}
	s.Kick()
	return nil
}

func (p *Proxy) KickByUsername(username, routeConfigID string) error {
	found := false
	for _, s := range p.index.forRoute(routeConfigID) {
		if s.Username == username {
			s.Kick()
			found = true
		}
	}
	if !found {
		return perrors.New(perrors.Internal, "no matching session")
	}
	return nil
}

func (p *Proxy) ListRoutes() []RouteSummary {
	out := make([]RouteSummary, 0)
	for _, sc := range p.registry.All() {
		out = append(out, RouteSummary{
			ConfigID:     sc.ConfigID,
			HostPatterns: sc.HostPatterns,
			Mode:         sc.Mode,
			Sessions:     p.index.countFor(sc.ConfigID),
		})
	}
	return out
}
