package apperr_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/routecore/platform/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMapsToHTTPStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.Unauthenticated:   http.StatusUnauthorized,
		apperr.Forbidden:         http.StatusForbidden,
		apperr.BadRequest:        http.StatusBadRequest,
		apperr.NotFound:          http.StatusNotFound,
		apperr.Conflict:          http.StatusConflict,
		apperr.ResourceExhausted: http.StatusServiceUnavailable,
		apperr.Internal:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		err := apperr.New(kind, "boom")
		assert.Equal(t, status, err.ToHTTPStatus())
		assert.Equal(t, status, apperr.HTTPStatus(err))
	}
}

func TestHTTPStatusDefaultsToInternalForUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(errors.New("plain")))
	assert.Equal(t, apperr.Internal, apperr.KindOf(errors.New("plain")))
}

func TestReasonOfAndWithDetails(t *testing.T) {
	err := apperr.Conflictf("BALANCE_EXCEEDED", "balance exhausted").WithDetails(map[string]any{"balanceType": "per_missions"})
	assert.Equal(t, "BALANCE_EXCEEDED", apperr.ReasonOf(err))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "per_missions", err.Details["balanceType"])
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperr.Internalf(cause, "create mission")
	assert.ErrorIs(t, err, cause)
}

func TestWriteErrorFlattensDetailsIntoBody(t *testing.T) {
	w := httptest.NewRecorder()
	err := apperr.Conflictf("BALANCE_EXCEEDED", "balance exhausted").WithDetails(map[string]any{"balanceType": "per_vehicles_per_month"})

	apperr.WriteError(w, err)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BALANCE_EXCEEDED", body["reason"])
	assert.Equal(t, "per_vehicles_per_month", body["balanceType"])
	assert.Equal(t, "CONFLICT", body["kind"])
}

func TestWriteErrorMasksUnclassifiedErrorsAs500(t *testing.T) {
	w := httptest.NewRecorder()
	apperr.WriteError(w, errors.New("unexpected panic-adjacent failure"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["error"])
}
