package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/diwise/warp/pkg/warp/files"
	"github.com/diwise/warp/pkg/warp/objects"
	"github.com/fatih/color"
	"github.com/matryer/is"
)

func TestParseValue(t *testing.T) {
	is := is.New(t)
	w := objects.NewWarp(nil)

	v, err := ParseValue(w, "42")
	is.NoErr(err)
	is.Equal(v, json.Number("42"))

	v, _ = ParseValue(w, "true")
	is.Equal(v, true)

	v, _ = ParseValue(w, "Alf")
	is.Equal(v, "Alf")

	v, _ = ParseValue(w, "42 apples")
	is.Equal(v, "42 apples")

	v, _ = ParseValue(w, `{"planet":"Melmac"}`)
	is.Equal(v.(map[string]any)["planet"], "Melmac")
}

func TestParsePointerValue(t *testing.T) {
	is := is.New(t)
	w := objects.NewWarp(nil)

	v, err := ParseValue(w, "ptr:Planet:melmac")
	is.NoErr(err)

	planet, ok := v.(*objects.Object)
	is.True(ok)
	is.Equal(planet.ClassName(), "Planet")
	is.Equal(planet.ID(), "melmac")
	is.True(!planet.IsNew())

	_, err = ParseValue(w, "ptr:Planet")
	is.True(err != nil)
}

func TestParseFileValue(t *testing.T) {
	is := is.New(t)

	v, err := ParseValue(objects.NewWarp(nil), "file:avatar.png")
	is.NoErr(err)

	f, ok := v.(*files.File)
	is.True(ok)
	is.Equal(f.FileKey(), "avatar.png")
	is.True(!f.IsNew())

	_, err = ParseValue(objects.NewWarp(nil), "file:")
	is.True(err != nil)
}

func TestParseAssignments(t *testing.T) {
	is := is.New(t)
	w := objects.NewWarp(nil)

	attributes, err := ParseAssignments(w, []string{"name=Alf", "age=229", "motto=a=b"})
	is.NoErr(err)
	is.Equal(attributes["name"], "Alf")
	is.Equal(attributes["age"], json.Number("229"))
	is.Equal(attributes["motto"], "a=b")

	_, err = ParseAssignments(w, []string{"name"})
	is.True(err != nil)

	_, err = ParseAssignments(w, []string{"=Alf"})
	is.True(err != nil)
}

func TestCreateCommand(t *testing.T) {
	is := is.New(t)
	color.NoColor = true

	s := testutils.NewMockServiceThat(
		testutils.Expects(
			is,
			expects.RequestMethod(http.MethodPost),
			expects.RequestPath("/api/1/classes/Alien"),
			expects.RequestBodyContaining(`"name":"Alf"`),
		),
		testutils.Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"status":200,"message":"Success","result":{"id":"alf"}}`)),
		),
	)
	defer s.Close()

	out := &bytes.Buffer{}

	cmd := NewRootCmd("test")
	cmd.SetOut(out)
	cmd.SetArgs([]string{"create", "Alien", "name=Alf", "--server", s.URL() + "/api/1", "--api-key", "1234"})

	err := cmd.ExecuteContext(context.Background())
	is.NoErr(err)

	is.True(strings.Contains(out.String(), "created Alien alf"))
	is.True(strings.Contains(out.String(), `name: "Alf"`))
}

func TestDestroyCommand(t *testing.T) {
	is := is.New(t)
	color.NoColor = true

	s := testutils.NewMockServiceThat(
		testutils.Expects(
			is,
			expects.RequestMethod(http.MethodDelete),
			expects.RequestPath("/api/1/classes/Alien/alf"),
		),
		testutils.Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"status":200,"message":"Success","result":{}}`)),
		),
	)
	defer s.Close()

	out := &bytes.Buffer{}

	cmd := NewRootCmd("test")
	cmd.SetOut(out)
	cmd.SetArgs([]string{"destroy", "Alien", "alf", "--server", s.URL() + "/api/1", "--api-key", "1234"})

	is.NoErr(cmd.ExecuteContext(context.Background()))
	is.Equal(s.RequestCount(), 1)
	is.True(strings.Contains(out.String(), "destroyed Alien alf"))
}

func TestCommandWithoutServerFails(t *testing.T) {
	is := is.New(t)
	t.Setenv("WARP_SERVER_URL", "")

	cmd := NewRootCmd("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"destroy", "Alien", "alf", "--api-key", "1234"})

	is.True(cmd.ExecuteContext(context.Background()) != nil)
}
