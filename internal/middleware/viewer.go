package middleware

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const ViewerIDKey ContextKey = "viewerID"

// LoadViewer gives every browser session a stable anonymous viewer id. Each
// viewer gets its own bracket views and pending results.
func LoadViewer(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID, err := uuid.Parse(sessionManager.GetString(r.Context(), string(ViewerIDKey)))
			if err != nil {
				viewerID = uuid.New()
				sessionManager.Put(r.Context(), string(ViewerIDKey), viewerID.String())
			}

			ctx := context.WithValue(r.Context(), ViewerIDKey, viewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetViewerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(ViewerIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}
