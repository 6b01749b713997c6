package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadViewerIsStablePerSession(t *testing.T) {
	sessionManager := scs.New()

	var seen []uuid.UUID
	handler := sessionManager.LoadAndSave(LoadViewer(sessionManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetViewerIDFromContext(r.Context())
		require.True(t, ok)
		seen = append(seen, id)
	})))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookies[0])
	handler.ServeHTTP(httptest.NewRecorder(), again)

	stranger := httptest.NewRecorder()
	handler.ServeHTTP(stranger, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, seen, 3)
	assert.NotEqual(t, uuid.Nil, seen[0])
	assert.Equal(t, seen[0], seen[1])
	assert.NotEqual(t, seen[0], seen[2])
}

func TestGetViewerIDFromEmptyContext(t *testing.T) {
	_, ok := GetViewerIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
