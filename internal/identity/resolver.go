package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Resolver canonicalizes client-claimed usernames against the user
// directory. It is consulted on every registration event and never
// caches, so a rename takes effect at the next registration.
type Resolver struct {
	users  storage.UserStore
	logger *slog.Logger
}

// New creates a new Resolver
func New(users storage.UserStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:  users,
		logger: logger.With(slog.String("component", "identity")),
	}
}

// Resolve looks up the claimed name by exact match. Directory misses and
// directory errors both degrade to an unresolved identity that carries
// the claimed name verbatim and holds no privilege. Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, claimedName string) model.Identity {
	if claimedName == "" {
		return model.Unresolved(claimedName)
	}

	user, err := r.users.GetUserByUsername(ctx, claimedName)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			r.logger.Warn("directory lookup failed, falling back to unresolved identity",
				slog.String("claimed_name", claimedName),
				slog.String("error", err.Error()))
		}
		return model.Unresolved(claimedName)
	}

	return model.Identity{
		ID:          user.ID,
		Resolved:    true,
		DisplayName: user.Username,
		Privileged:  user.Role.IsAdmin(),
	}
}
