package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("assign butler: %w", Capacityf("butler %s is at capacity", "B001"))
	assert.Equal(t, CapacityExceeded, KindOf(err))
	assert.True(t, Is(err, CapacityExceeded))
	assert.Equal(t, "assign butler: butler B001 is at capacity", err.Error())
}

func TestKindOf_Unexpected(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("driver: bad connection")))
	assert.False(t, Is(nil, NotFound))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:       http.StatusBadRequest,
		NotFound:         http.StatusNotFound,
		Conflict:         http.StatusConflict,
		CapacityExceeded: http.StatusBadRequest,
		Unauthorized:     http.StatusUnauthorized,
		Forbidden:        http.StatusForbidden,
		Upstream:         http.StatusBadGateway,
		"":               http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
