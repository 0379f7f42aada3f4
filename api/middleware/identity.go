package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type contextKey string

const ctxIdentity contextKey = "identity"

const (
	userIDHeader    = "X-User-Id"
	sessionIDHeader = "X-Session-Id"
)

// Identity resolves the buyer identity from the upstream auth gateway. The
// gateway terminates authentication and forwards either the user id or the
// anonymous session id; requests carrying neither are rejected.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := orders.Identity{}

			if raw := strings.TrimSpace(r.Header.Get(userIDHeader)); raw != "" {
				userID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id header"))
					return
				}
				identity.UserID = &userID
			}
			if raw := strings.TrimSpace(r.Header.Get(sessionIDHeader)); raw != "" {
				identity.SessionID = &raw
			}

			if !identity.Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity injects the buyer identity into the context.
func WithIdentity(ctx context.Context, identity orders.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext extracts the buyer identity set by the middleware.
func IdentityFromContext(ctx context.Context) (orders.Identity, bool) {
	if ctx == nil {
		return orders.Identity{}, false
	}
	if v, ok := ctx.Value(ctxIdentity).(orders.Identity); ok {
		return v, true
	}
	return orders.Identity{}, false
}

// IdentityScope returns a stable string for keying per-identity storage.
func IdentityScope(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	if identity.UserID != nil {
		return "user:" + identity.UserID.String()
	}
	if identity.SessionID != nil {
		return "session:" + *identity.SessionID
	}
	return ""
}
