package errcode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTyped(t *testing.T) {
	err := New(NotFound, "user %s not found", "u1")
	got := Convert(err)
	require.NotNil(t, got)
	assert.Equal(t, NotFound, got.Code)
	assert.Equal(t, "user u1 not found", got.Message)
}

func TestConvertWrapped(t *testing.T) {
	inner := New(ServiceUnavailable, "provider down")
	err := errors.Wrap(inner, "failed to complete")
	assert.Equal(t, ServiceUnavailable, CodeOf(err))
}

func TestConvertUntypedDefaultsToInternal(t *testing.T) {
	err := errors.New("boom")
	got := Convert(err)
	assert.Equal(t, Internal, got.Code)
	assert.Equal(t, "boom", got.Message)
}

func TestConvertNil(t *testing.T) {
	assert.Nil(t, Convert(nil))
	assert.Equal(t, OK, CodeOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{OK, 200},
		{BadRequest, 400},
		{Unauthorized, 401},
		{Forbidden, 403},
		{NotFound, 404},
		{UnprocessableEntity, 422},
		{Internal, 500},
		{NotImplemented, 501},
		{ServiceUnavailable, 503},
		{ServerParseError, 520},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus())
	}
}

func TestIs(t *testing.T) {
	err := New(Forbidden, "suspended")
	assert.True(t, Is(err, Forbidden))
	assert.False(t, Is(err, Unauthorized))
	assert.True(t, Is(nil, OK))
}
