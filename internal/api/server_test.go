package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"intellidoc/internal/util"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromErr(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFromErr(fmt.Errorf("document x: %w", util.ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusFromErr(fmt.Errorf("%w: empty query", util.ErrValidation)))
	assert.Equal(t, http.StatusConflict, statusFromErr(fmt.Errorf("%w: dimension drift", util.ErrIntegrity)))
	assert.Equal(t, http.StatusBadGateway, statusFromErr(fmt.Errorf("%w: qdrant down", util.ErrDependencyUnavailable)))
	assert.Equal(t, http.StatusInternalServerError, statusFromErr(errors.New("something else")))
}

func TestToAPIErrorMapsSchemaErrors(t *testing.T) {
	e := toAPIError(http.StatusInternalServerError, errors.New(`relation "documents" does not exist`))
	assert.Equal(t, "ID-DB-5001", e.Code)

	e = toAPIError(http.StatusInternalServerError, errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	assert.Equal(t, "ID-DB-5002", e.Code)

	e = toAPIError(http.StatusBadRequest, errors.New("invalid json: unexpected EOF"))
	assert.Equal(t, "ID-API-4001", e.Code)
	assert.Equal(t, "Malformed JSON request body.", e.Message)
}
