package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"item_count" validate:"gte=1"`
}

type selfValidating struct{ err error }

func (s selfValidating) Validate() error { return s.err }

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","item_count":2}`))
		var req sampleRequest
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &req))
		assert.Equal(t, sampleRequest{Name: "a", Count: 2}, req)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":true}`))
		var req sampleRequest
		assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &req))
	})
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(&sampleRequest{Name: "a"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Equal(t, "item_count", validationErrs[0].Field())

	assert.NoError(t, ValidateRequest(&sampleRequest{Name: "a", Count: 1}))
	assert.NoError(t, ValidateRequest(selfValidating{}))
}

func TestTraceID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetTraceID(r.Context()))

	ctx := SetTraceID(r.Context())
	assert.Len(t, GetTraceID(ctx), 36)
}
