package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/klubhuset/backend/internal/model"
)

// Resolver canonicalizes a claimed username against the user directory
type Resolver interface {
	Resolve(ctx context.Context, claimedName string) model.Identity
}

// Presence receives identity attach/detach notifications
type Presence interface {
	MarkPresent(identity model.Identity, connID model.ConnectionID)
	MarkAbsent(connID model.ConnectionID)
}

type session struct {
	identity   model.Identity
	registered bool
}

// Registry tracks live connections and the identity each one has
// registered. It is the single source of truth for "who is this
// connection" across the event handlers.
type Registry struct {
	mu    sync.RWMutex
	conns map[model.ConnectionID]*session

	resolver Resolver
	presence Presence
	logger   *slog.Logger
}

// New creates a new connection registry
func New(resolver Resolver, presence Presence, logger *slog.Logger) *Registry {
	return &Registry{
		conns:    make(map[model.ConnectionID]*session),
		resolver: resolver,
		presence: presence,
		logger:   logger.With(slog.String("component", "registry")),
	}
}

// OnConnect records a new live connection with no identity attached
func (r *Registry) OnConnect(connID model.ConnectionID) {
	r.mu.Lock()
	r.conns[connID] = &session{identity: model.Unresolved("")}
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection opened",
		slog.String("conn_id", string(connID)),
		slog.Int("connections", count))
}

// OnRegister resolves the claimed name and attaches the resulting
// identity to the connection, replacing any previous one. A resolved
// privileged identity is forwarded to presence.
func (r *Registry) OnRegister(ctx context.Context, connID model.ConnectionID, claimedName string) model.Identity {
	resolved := r.resolver.Resolve(ctx, claimedName)

	r.mu.Lock()
	sess, ok := r.conns[connID]
	if !ok {
		sess = &session{}
		r.conns[connID] = sess
	}
	sess.identity = resolved
	sess.registered = true
	r.mu.Unlock()

	if resolved.Privileged {
		r.presence.MarkPresent(resolved, connID)
	}

	r.logger.Info("connection registered",
		slog.String("conn_id", string(connID)),
		slog.String("display_name", resolved.DisplayName),
		slog.Bool("resolved", resolved.Resolved),
		slog.Bool("privileged", resolved.Privileged))
	return resolved
}

// OnDisconnect forgets the connection and detaches it from presence.
// It reports whether a privileged identity was attached, so the caller
// knows to rebroadcast the admin-online indicator.
func (r *Registry) OnDisconnect(connID model.ConnectionID) bool {
	r.mu.Lock()
	sess, ok := r.conns[connID]
	privileged := ok && sess.identity.Privileged
	delete(r.conns, connID)
	count := len(r.conns)
	r.mu.Unlock()

	r.presence.MarkAbsent(connID)

	r.logger.Info("connection closed",
		slog.String("conn_id", string(connID)),
		slog.Int("connections", count))
	return privileged
}

// Identity returns the identity attached to a connection, if any
func (r *Registry) Identity(connID model.ConnectionID) (model.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.conns[connID]
	if !ok || !sess.registered {
		return model.Identity{}, false
	}
	return sess.identity, true
}

// FindByName returns a live connection whose registered identity
// carries the given display name. With the name registered on several
// connections, which one comes back is unspecified.
func (r *Registry) FindByName(name string) (model.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID, sess := range r.conns {
		if sess.registered && sess.identity.DisplayName == name {
			return connID, true
		}
	}
	return "", false
}
