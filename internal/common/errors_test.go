package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotAuthenticatedError("no identity"), http.StatusUnauthorized},
		{NotFoundError("gone"), http.StatusNotFound},
		{InvalidInputError("bad"), http.StatusBadRequest},
		{SchemaValidationError("schema", nil), http.StatusUnprocessableEntity},
		{UpstreamError("down", nil), http.StatusBadGateway},
		{StorageError("disk", nil), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), c.err.Error())
	}
}

func TestErrorCodeSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFoundError("extraction not found"))
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, CodeInternal, ErrorCode(errors.New("plain")))
}

func TestAppErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamError("classification failed", cause)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}
