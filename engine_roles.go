package mudra

import (
	"context"
	"errors"

	"github.com/dimssu/Mudra/session"
)

// ResolveRole returns the user's current role, read through the session
// cache. A miss falls back to the directory and repopulates the cache; a
// cache outage degrades to the directory read as well, since the directory
// is the authority and the cache only an accelerator.
func (e *Engine) ResolveRole(ctx context.Context, userID string) (Role, error) {
	if e == nil || e.cache == nil {
		return "", ErrEngineNotReady
	}

	proj, err := e.cache.Projection(ctx, userID)
	switch {
	case err == nil:
		role := Role(proj.Role)
		if role.Valid() {
			e.metricInc(MetricRoleCacheHit)
			return role, nil
		}
		// An unknown role value in the cache is stale or corrupt data;
		// drop it and go to the directory.
		_ = e.cache.Invalidate(ctx, userID)
	case errors.Is(err, ErrCacheUnavailable):
		e.log().WarnContext(ctx, "role resolution degraded to directory read",
			"user_id", userID, "error", err)
	}

	e.metricInc(MetricRoleCacheMiss)

	user, err := e.directory.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := e.cache.SetProjection(ctx, userID, session.Projection{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
	}, e.config.Cache.ProjectionTTL); err != nil {
		e.log().WarnContext(ctx, "projection repopulation failed",
			"user_id", userID, "error", err)
	}

	return user.Role, nil
}

// RequireRole resolves the user's role and checks membership in allowed.
// A valid identity with an insufficient role gets ErrPermissionDenied; a
// deleted user surfaces ErrUserNotFound from the resolution step.
func (e *Engine) RequireRole(ctx context.Context, userID string, allowed ...Role) error {
	role, err := e.ResolveRole(ctx, userID)
	if err != nil {
		return err
	}

	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return ErrPermissionDenied
}

// InvalidateUser evicts the user's cache entries. Call it after any role
// change or account deletion performed outside the engine, so the next
// gate check and role resolution see the durable state.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	if e == nil || e.cache == nil {
		return ErrEngineNotReady
	}
	return e.cache.Invalidate(ctx, userID)
}
