package proxy

import (
	"sync"

	"github.com/Shadowner/Infrarust/internal/session"
)

// sessionIndex is the per-route map of live sessions introspection and
// Drain walk, per SPEC_FULL.md §5: "map[string]*session.Session per
// route, behind a sync.Mutex, never held across a channel send/receive."
type sessionIndex struct {
	mu    sync.Mutex
	byID  map[string]*session.Session
	route map[string]map[string]*session.Session
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{
		byID:  map[string]*session.Session{},
		route: map[string]map[string]*session.Session{},
	}
}

func (idx *sessionIndex) add(configID string, s *session.Session) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID[s.ID] = s
	if idx.route[configID] == nil {
		idx.route[configID] = map[string]*session.Session{}
	}
	idx.route[configID][s.ID] = s
}

func (idx *sessionIndex) remove(configID, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.byID, id)
	if m, ok := idx.route[configID]; ok {
		delete(m, id)
	}
}

func (idx *sessionIndex) find(id string) *session.Session {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.byID[id]
}

func (idx *sessionIndex) all() []*session.Session {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]*session.Session, 0, len(idx.byID))
	for _, s := range idx.byID {
		out = append(out, s)
	}
	return out
}

func (idx *sessionIndex) forRoute(configID string) []*session.Session {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m := idx.route[configID]
	out := make([]*session.Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

func (idx *sessionIndex) count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.byID)
}

func (idx *sessionIndex) countFor(configID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.route[configID])
}
