package presence

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/klubhuset/backend/internal/model"
)

// Admin-online messages shown to all visitors
const (
	messageOneAdmin   = "En admin er online"
	messageManyAdmins = "%d admins er online"
)

// Broadcaster delivers an event to every live connection
type Broadcaster interface {
	ToAll(event string, data any)
}

// entry tracks the live connections backing one privileged identity.
// An entry exists iff its connection set is non-empty, so the entry
// count always equals the count of distinct present admins.
type entry struct {
	displayName string
	conns       map[model.ConnectionID]struct{}
}

// Tracker maintains the set of distinct admin identities with at least
// one live connection. All operations are non-fatal: presence bookkeeping
// must never take down the connection-handling path.
type Tracker struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	broadcaster Broadcaster
	logger      *slog.Logger
}

// New creates a new Tracker
func New(broadcaster Broadcaster, logger *slog.Logger) *Tracker {
	return &Tracker{
		entries:     make(map[string]*entry),
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "presence")),
	}
}

// Entries are keyed by stable user id when one is known. Synthetic
// name-derived keys exist only for entries created through Rename before
// their owner re-registers; they are never trusted to grant privilege.
func idKey(id model.UserID) string {
	return fmt.Sprintf("id:%d", id)
}

func nameKey(name string) string {
	return "name:" + strings.ToLower(name)
}

// MarkPresent records that connID currently backs the given privileged
// identity. Unresolved identities are ignored: presence must trace to a
// directory-verified account. The connection is first purged from every
// other entry, since one connection backs at most one identity.
func (t *Tracker) MarkPresent(identity model.Identity, connID model.ConnectionID) {
	if !identity.Resolved || !identity.Privileged {
		t.logger.Debug("ignoring presence claim without verified admin identity",
			slog.String("display_name", identity.DisplayName),
			slog.String("conn_id", string(connID)))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeConnLocked(connID)

	key := idKey(identity.ID)
	e, ok := t.entries[key]
	if !ok {
		e = &entry{
			displayName: identity.DisplayName,
			conns:       make(map[model.ConnectionID]struct{}),
		}
		t.entries[key] = e
	}

	// Absorb any same-name entry parked under a synthetic key by Rename,
	// so the identity is never counted twice once its owner re-registers
	// with a verified id
	lower := strings.ToLower(identity.DisplayName)
	for k, other := range t.entries {
		if k == key || strings.ToLower(other.displayName) != lower {
			continue
		}
		for conn := range other.conns {
			e.conns[conn] = struct{}{}
		}
		delete(t.entries, k)
	}

	// Directory name wins over whatever the entry was created with
	e.displayName = identity.DisplayName
	e.conns[connID] = struct{}{}

	t.logger.Debug("admin connection present",
		slog.String("key", key),
		slog.String("conn_id", string(connID)),
		slog.Int("connections", len(e.conns)))
}

// MarkAbsent removes connID from whichever entries contain it, dropping
// entries whose connection set becomes empty.
func (t *Tracker) MarkAbsent(connID model.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeConnLocked(connID)
}

func (t *Tracker) removeConnLocked(connID model.ConnectionID) {
	for key, e := range t.entries {
		if _, ok := e.conns[connID]; !ok {
			continue
		}
		delete(e.conns, connID)
		if len(e.conns) == 0 {
			delete(t.entries, key)
		}
	}
}

// ForceRemove deletes every entry matching the given user id or display
// name. Used when an account is deleted or demoted. Idempotent.
func (t *Tracker) ForceRemove(idOrName string) {
	name := strings.TrimSpace(idOrName)
	if name == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lower := strings.ToLower(name)
	for key, e := range t.entries {
		if key == idKey(parseID(name)) || strings.ToLower(e.displayName) == lower {
			delete(t.entries, key)
		}
	}
}

func parseID(s string) model.UserID {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0
	}
	return model.UserID(id)
}

// Rename merges the entry for oldName into the entry for newName,
// preserving the union of connection ids, so a privileged user changing
// their display name keeps their live connections in presence.
func (t *Tracker) Rename(oldName, newName string) {
	oldTrimmed := strings.TrimSpace(oldName)
	newTrimmed := strings.TrimSpace(newName)
	if oldTrimmed == "" || newTrimmed == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	oldLower := strings.ToLower(oldTrimmed)
	collected := make(map[model.ConnectionID]struct{})
	for key, e := range t.entries {
		if strings.ToLower(e.displayName) == oldLower {
			for conn := range e.conns {
				collected[conn] = struct{}{}
			}
			delete(t.entries, key)
		}
	}
	if len(collected) == 0 {
		return
	}

	var target *entry
	newLower := strings.ToLower(newTrimmed)
	for _, e := range t.entries {
		if strings.ToLower(e.displayName) == newLower {
			target = e
			break
		}
	}
	if target == nil {
		target = &entry{
			displayName: newTrimmed,
			conns:       make(map[model.ConnectionID]struct{}),
		}
		t.entries[nameKey(newTrimmed)] = target
	}

	for conn := range collected {
		target.conns[conn] = struct{}{}
	}

	t.logger.Debug("admin presence renamed",
		slog.String("old", oldTrimmed),
		slog.String("new", newTrimmed),
		slog.Int("connections", len(target.conns)))
}

// Snapshot returns the current count and sorted roster of present
// admins, recomputed on demand.
func (t *Tracker) Snapshot() (int, []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roster := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		roster = append(roster, e.displayName)
	}
	sort.Strings(roster)
	return len(t.entries), roster
}

// Notice builds the public admin-online payload with a count-dependent
// human-readable message.
func (t *Tracker) Notice() model.AdminOnlineNotice {
	count, roster := t.Snapshot()

	message := ""
	switch {
	case count == 1:
		message = messageOneAdmin
	case count > 1:
		message = fmt.Sprintf(messageManyAdmins, count)
	}

	return model.AdminOnlineNotice{
		Count:   count,
		Message: message,
		Admins:  roster,
	}
}

// Broadcast emits the current admin-online notice to all connections.
// This is a public "how many staff are online" indicator, not an
// admin-only signal.
func (t *Tracker) Broadcast() {
	if t.broadcaster == nil {
		return
	}
	t.broadcaster.ToAll(model.EventAdminOnlineMessage, t.Notice())
}
