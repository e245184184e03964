package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/diwise/warp/pkg/warp/errors"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var anyInput = expects.AnyInput
var method = expects.RequestMethod
var path = expects.RequestPath
var body = expects.RequestBody

func header(key, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.Equal(r.Header.Get(key), value)
	}
}

func TestCreate(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/api/1/classes/Alien"),
			body(`{"age":{"type":"Increment","value":2},"name":"Alf"}`),
			header(HeaderAPIKey, "secret"),
			header(HeaderClientPlatform, "go"),
			header("Content-Type", "application/json"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"status":200,"message":"Success","result":{"id":17,"created_at":"2024-01-01T00:00:00.000Z","updated_at":"2024-01-01T00:00:00.000Z"}}`)),
		),
	)
	defer s.Close()

	c := New(s.URL()+"/api/1", APIKey("secret"), Platform("go"))

	result, err := c.Create(context.Background(), "classes/Alien", map[string]any{
		"name": "Alf",
		"age":  map[string]any{"type": "Increment", "value": int64(2)},
	})

	is.NoErr(err)
	is.Equal(result["id"], json.Number("17"))
	is.Equal(result["created_at"], "2024-01-01T00:00:00.000Z")
}

func TestUpdate(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPut),
			path("/classes/Alien/17"),
			header(HeaderMasterKey, "master"),
			header(HeaderSessionToken, "token"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"status":200,"message":"Success","result":{"id":"17","age":14}}`)),
		),
	)
	defer s.Close()

	c := New(s.URL(), APIKey("secret"), MasterKey("master"), SessionToken("token"))

	result, err := c.Update(context.Background(), "classes/Alien", "17", map[string]any{"age": 14})

	is.NoErr(err)
	is.Equal(result["age"], json.Number("14"))
}

func TestDestroy(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodDelete),
			path("/classes/Alien/17"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"status":200,"message":"Success","result":{"id":"17"}}`)),
		),
	)
	defer s.Close()

	c := New(s.URL(), APIKey("secret"), MaxRequests(1))

	err := c.Destroy(context.Background(), "classes/Alien", "17")

	is.NoErr(err)
	is.Equal(s.RequestCount(), 1)
}

func TestNotFoundIsMappedToSentinel(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusNotFound),
			response.Body([]byte(`{"status":404,"message":"Object not found","code":404}`)),
		),
	)
	defer s.Close()

	c := New(s.URL())

	err := c.Destroy(context.Background(), "classes/Alien", "17")

	is.True(errors.Is(err, errors.ErrNotFound))
	is.Equal(errors.CodeOf(err), errors.ObjectNotFound)
}

func TestUnauthorizedIsMappedToSentinel(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.Code(http.StatusUnauthorized),
		),
	)
	defer s.Close()

	c := New(s.URL(), APIKey("wrong"))

	_, err := c.Create(context.Background(), "classes/Alien", map[string]any{})

	is.True(errors.Is(err, errors.ErrUnauthorized))
}

func TestMalformedResponseIsBadResponse(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.Code(http.StatusOK),
			response.Body([]byte(`<html></html>`)),
		),
	)
	defer s.Close()

	c := New(s.URL())

	_, err := c.Create(context.Background(), "classes/Alien", map[string]any{})

	is.True(errors.Is(err, errors.ErrBadResponse))
}

func TestUnreachableServerIsRequestError(t *testing.T) {
	is := is.New(t)

	c := New("http://127.0.0.1:1")

	_, err := c.Update(context.Background(), "classes/Alien", "1", map[string]any{})

	is.True(errors.Is(err, errors.ErrRequest))
}
