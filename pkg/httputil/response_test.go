package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, 200, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestWriteErrorMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorMessage(rec, 400, "bad input")

	assert.Equal(t, 400, rec.Code)
	assert.JSONEq(t, `{"error":"bad input"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 500, errors.New("boom"))

	assert.Equal(t, 500, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}

func TestWriteFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFieldErrors(rec, map[string]string{
		"email":    "email is required",
		"password": "password must be at least 5 characters",
	})

	assert.Equal(t, 400, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, "email is required", resp.Details["email"])
	assert.Equal(t, "password must be at least 5 characters", resp.Details["password"])
}

func TestStatusHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnauthorized(rec, "missing token")
	assert.Equal(t, 401, rec.Code)

	rec = httptest.NewRecorder()
	WriteNotFoundError(rec, "recipe not found")
	assert.Equal(t, 404, rec.Code)

	rec = httptest.NewRecorder()
	WriteMethodNotAllowed(rec)
	assert.Equal(t, 405, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, WriteCreated(rec, map[string]int{"id": 1}))
	assert.Equal(t, 201, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]int{"id": 1}))
	assert.Equal(t, 200, rec.Code)
}
