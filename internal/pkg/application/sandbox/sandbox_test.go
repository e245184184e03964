package sandbox

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/files"
	"github.com/diwise/warp/pkg/warp/objects"
	"github.com/matryer/is"
	"github.com/pressly/goose/v3"
)

func TestCreateReturnsIdentityAndTimestamps(t *testing.T) {
	is, app := setupAppTest(t)

	result, err := app.Create(context.Background(), "Alien", map[string]any{"name": "Alf", "id": "ignored"})
	is.NoErr(err)

	is.True(result["id"] != "ignored")
	is.Equal(result["created_at"], "2024-03-01T12:00:00.000Z")
	is.Equal(result["updated_at"], "2024-03-01T12:00:00.000Z")
	is.Equal(result["name"], "Alf")

	_, hasClassName := result["className"]
	is.True(!hasClassName)
}

func TestCreateWithIncrementStartsFromZero(t *testing.T) {
	is, app := setupAppTest(t)

	result, err := app.Create(context.Background(), "Alien", map[string]any{
		"age": map[string]any{"type": "Increment", "value": json.Number("4")},
	})
	is.NoErr(err)
	is.Equal(result["age"], int64(4))
}

func TestUpdateResolvesIncrements(t *testing.T) {
	is, app := setupAppTest(t)
	ctx := context.Background()

	created, _ := app.Create(ctx, "Alien", map[string]any{"age": json.Number("10"), "name": "Alf"})
	id := created["id"].(string)

	app.now = func() time.Time { return time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC) }

	result, err := app.Update(ctx, "Alien", id, map[string]any{
		"age":  map[string]any{"type": "Increment", "value": float64(3)},
		"name": map[string]any{"type": "Increment", "value": 1},
	})
	is.NoErr(err)

	is.Equal(result["age"], int64(13))
	is.Equal(result["name"], int64(1)) // a value that is not a number should count as 0
	is.Equal(result["id"], id)
	is.Equal(result["updated_at"], "2024-03-02T08:30:00.000Z")

	object, err := app.Retrieve(ctx, "Alien", id)
	is.NoErr(err)
	is.Equal(object["age"], int64(13))
	is.Equal(object["className"], "Alien")
	is.Equal(object["created_at"], "2024-03-01T12:00:00.000Z")
}

func TestUpdateRejectsFractionalIncrements(t *testing.T) {
	is, app := setupAppTest(t)
	ctx := context.Background()

	created, _ := app.Create(ctx, "Alien", map[string]any{"age": 10})

	_, err := app.Update(ctx, "Alien", created["id"].(string), map[string]any{
		"age": map[string]any{"type": "Increment", "value": 2.5},
	})
	is.True(errors.Is(err, errors.ErrBadRequest))
}

func TestPointersAreStoredWithoutNestedAttributes(t *testing.T) {
	is, app := setupAppTest(t)

	result, err := app.Create(context.Background(), "Alien", map[string]any{
		"planet": map[string]any{"type": "Pointer", "className": "Planet", "id": "p1", "attributes": map[string]any{"name": "Melmac"}},
	})
	is.NoErr(err)

	is.Equal(result["planet"], map[string]any{"type": "Pointer", "className": "Planet", "id": "p1"})
}

func TestUnknownObjectIsNotFound(t *testing.T) {
	is, app := setupAppTest(t)
	ctx := context.Background()

	_, err := app.Retrieve(ctx, "Alien", "nope")
	is.True(errors.Is(err, errors.ErrNotFound))

	_, err = app.Update(ctx, "Alien", "nope", map[string]any{"name": "Alf"})
	is.True(errors.Is(err, errors.ErrNotFound))

	_, err = app.Destroy(ctx, "Alien", "nope")
	is.True(errors.Is(err, errors.ErrNotFound))
}

func TestObjectsRoundTripThroughTheSandbox(t *testing.T) {
	is, app := setupAppTest(t)
	ctx := context.Background()

	w := objects.NewWarp(NewTransport(app))

	planet, _ := w.New("Planet", map[string]any{"name": "Melmac"})
	_, err := planet.Save(ctx)
	is.NoErr(err)

	alien, _ := w.New("Alien", map[string]any{
		"name":   "Alf",
		"age":    10,
		"planet": planet,
		"avatar": files.CreateWithoutData("alf.png"),
	})

	_, err = alien.Save(ctx)
	is.NoErr(err)
	is.True(!alien.IsNew())
	is.Equal(alien.CreatedAt(), "2024-03-01T12:00:00.000Z")

	_, err = alien.Increment("age", 2)
	is.NoErr(err)

	_, err = alien.Save(ctx)
	is.NoErr(err)
	is.Equal(alien.Get("age"), int64(12))

	stored, err := app.Retrieve(ctx, "Alien", alien.ID())
	is.NoErr(err)
	is.Equal(stored["planet"], map[string]any{"type": "Pointer", "className": "Planet", "id": planet.ID()})
	is.Equal(stored["avatar"], map[string]any{"type": "File", "key": "alf.png"})

	decoded, err := w.Decode("Alien", stored)
	is.NoErr(err)
	is.Equal(decoded.Get("planet").(*objects.Object).ID(), planet.ID())

	id := alien.ID()

	_, err = alien.Destroy(ctx)
	is.NoErr(err)
	is.True(alien.IsNew())

	_, err = app.Retrieve(ctx, "Alien", id)
	is.True(errors.Is(err, errors.ErrNotFound))
}

func TestTransportRejectsUnknownEndpoints(t *testing.T) {
	is, app := setupAppTest(t)

	_, err := NewTransport(app).Create(context.Background(), "users", map[string]any{})
	is.True(errors.Is(err, errors.ErrNotFound))
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := NewMemoryStore()
	r := Record{ClassName: "Alien", ID: "a1", Attributes: map[string]any{"name": "Alf"}}

	is.NoErr(s.Insert(ctx, r))
	is.True(errors.Is(s.Insert(ctx, r), errors.ErrBadRequest))

	r.Attributes["name"] = "Willie"

	stored, err := s.Get(ctx, "Alien", "a1")
	is.NoErr(err)
	is.Equal(stored.Attributes["name"], "Alf") // the store should keep its own copy
}

func TestLoadConfiguration(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadConfiguration(bytes.NewBufferString(configFile))
	is.NoErr(err)

	is.Equal(cfg.APIKeys, []string{"1234", "5678"})
	is.Equal(cfg.MasterKey, "secret")
	is.Equal(len(cfg.Classes), 2)
	is.Equal(cfg.ReadOnlyClasses(), []string{"Planet"})
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	is := is.New(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	called := false
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		is.Equal(dir, ".")
		return nil
	}

	is.NoErr(migrate(context.Background(), nil))
	is.True(called)
}

func TestPostgresConfiguration(t *testing.T) {
	is := is.New(t)

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "warp")
	t.Setenv("POSTGRES_PASSWORD", "pwd")

	cfg := LoadPostgresConfiguration(context.Background())

	is.True(cfg.Enabled())
	is.Equal(cfg.ConnStr(), "postgres://warp:pwd@db:5432/warp?sslmode=disable")
}

func setupAppTest(t *testing.T) (*is.I, *sandboxApp) {
	is := is.New(t)

	app := newApp(NewMemoryStore(), nil)
	app.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	return is, app
}

const configFile string = `
apiKeys:
  - "1234"
  - "5678"
masterKey: secret
classes:
  - name: Alien
  - name: Planet
    readOnly: true
`
