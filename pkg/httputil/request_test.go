package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"demo"}`))

	var dest struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "demo", dest.Name)
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bogus`))

	var dest map[string]interface{}
	err := ParseJSON(r, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/projects/42", nil)
	r = mux.SetURLVars(r, map[string]string{"project_id": "42"})

	val, err := ParsePathInt64(r, "project_id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)
}

func TestParsePathInt64Invalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/projects/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"project_id": "abc"})

	_, err := ParsePathInt64(r, "project_id")
	assert.Error(t, err)
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/comments/"+id.String(), nil)
	r = mux.SetURLVars(r, map[string]string{"comment_id": id.String()})

	val, err := ParsePathUUID(r, "comment_id")
	require.NoError(t, err)
	assert.Equal(t, id, val)

	r = mux.SetURLVars(r, map[string]string{"comment_id": "not-a-uuid"})
	_, err = ParsePathUUID(r, "comment_id")
	assert.Error(t, err)
}
