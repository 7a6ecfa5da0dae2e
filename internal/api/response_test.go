package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/validation"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSuccessResponse(t *testing.T) {
	c, rec := newTestContext()
	require.NoError(t, SuccessResponse(c, http.StatusOK, map[string]string{"name": "Acme"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Error)
	assert.Nil(t, body.Validation)
	assert.False(t, body.Meta.Timestamp.IsZero())

	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Acme", data["name"])
}

func TestErrorResponseUsesGenericCode(t *testing.T) {
	c, rec := newTestContext()
	require.NoError(t, ErrorResponse(c, http.StatusInternalServerError, "boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERROR", body.Error.Code)
	assert.Equal(t, "boom", body.Error.Message)
}

func TestErrorResponseWithCode(t *testing.T) {
	c, rec := newTestContext()
	require.NoError(t, ErrorResponseWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "nope"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	assert.Equal(t, "nope", body.Error.Message)
}

func TestValidationErrorResponse(t *testing.T) {
	c, rec := newTestContext()
	result := &validation.Result{}
	result.AddError(validation.CodeMissingField, "name is required")

	require.NoError(t, ValidationErrorResponse(c, result))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Validation)
	assert.True(t, body.Validation.HasErrors())
	assert.Nil(t, body.Error)
}
