package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", shared.Validation("bad input"), http.StatusBadRequest},
		{"invariant", shared.Invariant("one open year"), http.StatusUnprocessableEntity},
		{"conflict", shared.Conflict("duplicate code"), http.StatusConflict},
		{"not found", shared.NotFound("no such journal"), http.StatusNotFound},
		{"configuration", shared.Configuration("missing mapping"), http.StatusServiceUnavailable},
		{"untagged", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
			assert.Equal(t, tc.status, problem.Status)
			assert.NotEmpty(t, problem.Title)
		})
	}
}

func TestRespondErrorWrappedKeepsKind(t *testing.T) {
	err := fmt.Errorf("posting receipt 7: %w", shared.NotFound("cashbox not found"))
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: secret table missing"))

	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Empty(t, problem.Detail)
}
