package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrOTPInvalid.WithExtra("attemptsRemaining", 2))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "OTP_INVALID", body["code"])
	require.Equal(t, float64(2), body["attemptsRemaining"])
	require.NotContains(t, body, "detail")
}

func TestWriteError_UnknownIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Write(rec, req, stderrors.New("pq: connection refused on 10.0.0.5"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "SERVER_ERROR", body["code"])
	require.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestCopiesDoNotMutateBase(t *testing.T) {
	e := ErrMissingFields.WithDetail("studentId").WithExtra("k", 1)
	require.Equal(t, "studentId", e.Detail)
	require.Empty(t, ErrMissingFields.Detail)
	require.Nil(t, ErrMissingFields.Extra)

	cause := stderrors.New("boom")
	w := ErrServer.WithCause(cause)
	require.ErrorIs(t, w, cause)
	require.Nil(t, ErrServer.Err)
}
