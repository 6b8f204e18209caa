package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/contextkeys"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/storage"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", storage.NewNotFound("project", int64(7)), http.StatusNotFound},
		{"forbidden", &storage.ForbiddenError{Reason: "nope"}, http.StatusForbidden},
		{"validation", storage.NewValidation("age", "must be at least 15"), http.StatusBadRequest},
		{"conflict", &storage.ConflictError{Resource: "contributor", Detail: "already added"}, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteDomainError(w, r, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteDomainError(w, r, errors.New("pq: connection refused"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
}

func TestWriteInternalErrorLogsCause(t *testing.T) {
	var buf bytes.Buffer
	ctx := contextkeys.WithLogger(context.Background(), observability.NewLogger(observability.InfoLevel, &buf))

	w := httptest.NewRecorder()
	WriteInternalError(ctx, w, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pq: connection refused", entry["error"])
}

func TestWriteValidationErrorIncludesField(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, "age", "must be at least 15")

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "age", body["field"])
	assert.Equal(t, "must be at least 15", body["error"])
}
