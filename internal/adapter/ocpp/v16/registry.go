package v16

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// Registry tracks the live OCPP sessions keyed by charge point identity.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]ports.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]ports.Session)}
}

func (r *Registry) Register(session ports.Session) {
	r.mu.Lock()
	prior, had := r.sessions[session.ChargePointID()]
	// A reconnecting charge point replaces its prior session, and the old
	// socket is closed so only one connection per identity stays live.
	r.sessions[session.ChargePointID()] = session
	r.mu.Unlock()
	if had && prior != session {
		_ = prior.Close(websocket.CloseNormalClosure, "replaced by a new connection")
	}
}

func (r *Registry) Unregister(chargePointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chargePointID)
}

// unregisterIfCurrent removes chargePointID only if it is still mapped to
// this exact session, so a stale connection's teardown can never evict
// the session a reconnect has already replaced it with.
func (r *Registry) unregisterIfCurrent(chargePointID string, session ports.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[chargePointID]; ok && current == session {
		delete(r.sessions, chargePointID)
	}
}

func (r *Registry) Get(chargePointID string) (ports.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[chargePointID]
	return s, ok
}

func (r *Registry) Connected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

var _ ports.SessionRegistry = (*Registry)(nil)
