// Package session implements the Session Supervisor: the state machine
// that owns one client<->backend pairing from the moment a route is
// resolved until both legs are closed, per spec.md §4.J.
package session

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// State is one stage of the Supervisor's lifecycle, per spec.md §4.J's
// state diagram.
type State int32

const (
	StateDialing State = iota
	StateWaitingForBackendUp
	StateHandshaking
	StateStatus
	StateLoginRelay
	StateActive
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateWaitingForBackendUp:
		return "waiting_for_backend_up"
	case StateHandshaking:
		return "handshaking"
	case StateStatus:
		return "status"
	case StateLoginRelay:
		return "login_relay"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metrics is the point-in-time byte/session counters exposed by
// introspection (spec.md §4.P).
type Metrics struct {
	BytesClientToBackend int64
	BytesBackendToClient int64
	OpenedAt             time.Time
}

// Info is the introspectable snapshot of one live session.
type Info struct {
	ID         string
	ConfigID   string
	Username   string
	RemoteAddr string
	State      State
	Metrics    Metrics
}

// Session supervises one client<->backend connection pair through its
// full lifecycle, including the two byte-forwarding goroutines once
// Active, and reports its terminal outcome as RunForwarders' return value.
type Session struct {
	ID         string
	ConfigID   string
	Username   string
	RemoteAddr net.Addr

	log logr.Logger

	state atomic.Int32

	bytesC2B atomic.Int64
	bytesB2C atomic.Int64
	openedAt time.Time

	mu      sync.Mutex
	onKick  chan struct{}
	kicked  bool
}

// New constructs a Session in StateDialing.
func New(id, configID string, remoteAddr net.Addr, log logr.Logger) *Session {
	s := &Session{
		ID:         id,
		ConfigID:   configID,
		RemoteAddr: remoteAddr,
		log:        log.WithValues("session_id", id, "config_id", configID, "remote_addr", remoteAddr.String()),
		openedAt:   time.Now(),
		onKick:     make(chan struct{}),
	}
	s.state.Store(int32(StateDialing))
	return s
}

// SetState transitions the Supervisor to a new state, logging at debug
// verbosity; it does not validate the transition graph — callers own
// that ordering, matching how the teacher's own session handlers drive
// phase changes directly.
func (s *Session) SetState(st State) {
	s.state.Store(int32(st))
	s.log.V(1).Info("session state transition", "state", st.String())
}

func (s *Session) State() State { return State(s.state.Load()) }

// SetUsername records the authenticated/claimed username once login-start
// is parsed, for introspection and filtering.
func (s *Session) SetUsername(username string) { s.Username = username }

// Info returns an introspectable snapshot of this session's current
// state and counters.
func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		ConfigID:   s.ConfigID,
		Username:   s.Username,
		RemoteAddr: s.RemoteAddr.String(),
		State:      s.State(),
		Metrics: Metrics{
			BytesClientToBackend: s.bytesC2B.Load(),
			BytesBackendToClient: s.bytesB2C.Load(),
			OpenedAt:             s.openedAt,
		},
	}
}

// Kick asynchronously requests this session be torn down; RunForwarders
// observes it on its next select iteration. Safe to call more than once.
func (s *Session) Kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kicked {
		return
	}
	s.kicked = true
	close(s.onKick)
}

// RunForwarders pumps bytes in both directions between client and
// backend until either side closes, ctx is canceled, or Kick is called,
// per spec.md §4.J's Active state: "two forwarder goroutines, paired
// under one errgroup; the first to fail cancels the other." Returns once
// both directions have stopped.
func (s *Session) RunForwarders(ctx context.Context, client, backend io.ReadWriteCloser, bufBytes int) error {
	s.SetState(StateActive)

	if bufBytes <= 0 {
		bufBytes = 8 * 1024
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.onKick:
		case <-ctx.Done():
		}
		// Draining only replaces Active, so the deferred cancel that wakes
		// this goroutine after the terminal state is set changes nothing.
		if s.state.CompareAndSwap(int32(StateActive), int32(StateDraining)) {
			s.log.V(1).Info("session state transition", "state", StateDraining.String())
		}
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pump(gctx, client, backend, &s.bytesC2B, bufBytes)
	})
	g.Go(func() error {
		return s.pump(gctx, backend, client, &s.bytesB2C, bufBytes)
	})

	err := g.Wait()
	_ = client.Close()
	_ = backend.Close()

	// Terminal state is set once, after every forwarder has stopped, so
	// nothing overwrites it afterward.
	if err != nil && err != io.EOF {
		s.SetState(StateFailed)
		return perrors.Wrap(perrors.Internal, "forwarder pump failed", err)
	}
	s.SetState(StateDone)
	return nil
}

// pump copies from src to dst until EOF, ctx cancellation, or error,
// tallying bytes moved into counter. A context cancellation from the
// sibling pump's failure is not itself reported as an error.
func (s *Session) pump(ctx context.Context, dst io.Writer, src io.Reader, counter *atomic.Int64, bufBytes int) error {
	done := make(chan error, 1)
	go func() {
		buf := make([]byte, bufBytes)
		for {
			n, rerr := src.Read(buf)
			if n > 0 {
				if _, werr := dst.Write(buf[:n]); werr != nil {
					done <- werr
					return
				}
				counter.Add(int64(n))
			}
			if rerr != nil {
				if rerr == io.EOF {
					done <- nil
				} else {
					done <- rerr
				}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}
