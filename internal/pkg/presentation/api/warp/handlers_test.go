package warp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/warp/internal/pkg/application/sandbox"
	"github.com/diwise/warp/internal/pkg/infrastructure/router"
	"github.com/diwise/warp/internal/pkg/presentation/api/warp/auth"
	"github.com/diwise/warp/pkg/warp/client"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/objects"
	"github.com/matryer/is"
)

func TestCreateObject(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/api/1/classes/Alien", "1234", strings.NewReader(`{"name":"Alf"}`))

	is.Equal(resp.StatusCode, http.StatusOK)

	envelope := decodeEnvelope(is, body)
	is.Equal(envelope["status"], json.Number("200"))
	is.Equal(envelope["message"], "Success")

	result := envelope["result"].(map[string]any)
	is.True(result["id"] != "")
	is.Equal(result["name"], "Alf")
}

func TestCreateObjectWithUnknownAPIKeyIsUnauthorized(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/api/1/classes/Alien", "nope", strings.NewReader(`{}`))

	is.Equal(resp.StatusCode, http.StatusUnauthorized)
	is.Equal(decodeEnvelope(is, body)["code"], json.Number("401"))
}

func TestCreateObjectWithWrongContentTypeIsUnsupported(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/1/classes/Alien", strings.NewReader("name=Alf"))
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add(client.HeaderAPIKey, "1234")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnsupportedMediaType)
}

func TestCreateObjectWithBadDataIsInvalidRequest(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/api/1/classes/Alien", "1234", strings.NewReader("this is not my json"))

	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestRetrieveUnknownObjectIsNotFound(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodGet, "/api/1/classes/Alien/nope", "1234", nil)

	is.Equal(resp.StatusCode, http.StatusNotFound)
	is.Equal(decodeEnvelope(is, body)["code"], json.Number("404"))
}

func TestWritesToReadOnlyClassAreForbidden(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/api/1/classes/Planet", "1234", strings.NewReader(`{"name":"Melmac"}`))
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestObjectsRoundTripOverHTTP(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	ctx := context.Background()
	w := objects.NewWarp(client.New(ts.URL+APIPrefix, client.APIKey("1234")))

	alien, err := w.New("Alien", map[string]any{"name": "Alf", "age": 10})
	is.NoErr(err)

	_, err = alien.Save(ctx)
	is.NoErr(err)
	is.True(!alien.IsNew())
	is.True(alien.ID() != "")

	_, _ = alien.Increment("age", 5)
	_, err = alien.Save(ctx)
	is.NoErr(err)
	is.Equal(alien.Get("age"), json.Number("15"))

	friend := w.CreateWithoutData("Alien", alien.ID())
	other, _ := w.New("Alien", map[string]any{"friend": friend})
	_, err = other.Save(ctx)
	is.NoErr(err)

	_, err = alien.Destroy(ctx)
	is.NoErr(err)

	_, err = friend.Set("name", "Willie")
	is.NoErr(err)

	_, err = friend.Save(ctx)
	is.True(errors.Is(err, errors.ErrNotFound)) // the object should be gone from the server
}

func TestReadOnlyClassIsWritableWithMasterKey(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	w := objects.NewWarp(client.New(ts.URL+APIPrefix, client.APIKey("1234"), client.MasterKey("secret")))

	planet, _ := w.New("Planet", map[string]any{"name": "Melmac"})
	_, err := planet.Save(context.Background())
	is.NoErr(err)
}

func setupTest(t *testing.T) (*is.I, *httptest.Server, sandbox.App) {
	is := is.New(t)
	ctx := context.Background()

	app, err := sandbox.New(ctx, sandbox.NewMemoryStore())
	is.NoErr(err)

	r := router.New("warp-sandbox-test")

	err = RegisterHandlers(ctx, r, nil, auth.Keys{
		APIKeys:         []string{"1234"},
		MasterKey:       "secret",
		ReadOnlyClasses: []string{"Planet"},
	}, app)
	is.NoErr(err)

	return is, httptest.NewServer(r), app
}

func newTestRequest(is *is.I, ts *httptest.Server, method, path, apiKey string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add(client.HeaderAPIKey, apiKey)

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	is.NoErr(err) // failed to read response body

	return resp, string(respBody)
}

func decodeEnvelope(is *is.I, body string) map[string]any {
	d := json.NewDecoder(bytes.NewBufferString(body))
	d.UseNumber()

	envelope := map[string]any{}
	is.NoErr(d.Decode(&envelope))

	return envelope
}
