package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorResponses(t *testing.T) {
	testCases := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		body   string
	}{
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom", errors.New("x")) }, http.StatusInternalServerError, "Internal Server Error\n"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad form", nil) }, http.StatusBadRequest, "bad form\n"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no bracket", nil) }, http.StatusNotFound, "no bracket\n"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "busy", errors.New("x")) }, http.StatusConflict, "busy\n"},
		{"bad gateway", func(w http.ResponseWriter) { BadGateway(w, "ledger down", errors.New("x")) }, http.StatusBadGateway, "ledger down\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"matchNumber": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"matchNumber":3}`, rec.Body.String())
}
