package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/matryer/is"
)

func TestWarpErrorMatchesSentinels(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("set failed: %w", NewForbiddenOperationError("nope"))

	is.True(Is(err, ErrForbiddenOperation))
	is.True(!Is(err, ErrInvalidObjectKey))
	is.Equal(CodeOf(err), ForbiddenOperation)
	is.Equal(StatusCode(err), http.StatusForbidden)
}

func TestNewErrorFromResponse(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusNotFound, []byte(`{"status":404,"message":"Object not found","code":404}`))

	is.True(Is(err, ErrNotFound))
	is.Equal(err.Error(), "[status: 404] Object not found")
	is.Equal(CodeOf(err), ObjectNotFound)
	is.Equal(StatusCode(err), http.StatusNotFound)
}

func TestNewErrorFromResponseWithoutBody(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusBadGateway, nil)

	is.True(Is(err, ErrInternal))
	is.Equal(err.Error(), "[status: 502] Bad Gateway")
	is.Equal(CodeOf(err), Code(http.StatusBadGateway))
}

func TestStatusCodeOfWrappedSentinel(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("no Alien with id 1 (%w)", ErrNotFound)

	is.Equal(StatusCode(err), http.StatusNotFound)
	is.Equal(CodeOf(err), ObjectNotFound)
	is.Equal(StatusCode(fmt.Errorf("boom")), http.StatusInternalServerError)
}
