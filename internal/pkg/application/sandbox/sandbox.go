package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/internal/pkg/application/subscriptions"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/types"
	"github.com/google/uuid"
)

// App implements the object endpoints of a Warp server
type App interface {
	Create(ctx context.Context, className string, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, className, id string, payload map[string]any) (map[string]any, error)
	Retrieve(ctx context.Context, className, id string) (map[string]any, error)
	Destroy(ctx context.Context, className, id string) (map[string]any, error)

	Start() error
	Stop() error
}

// TimeFormat is RFC 3339 in UTC with millisecond precision
const TimeFormat string = "2006-01-02T15:04:05.000Z"

const (
	keyClassName string = "className"
	keyID        string = "id"
	keyCreatedAt string = "created_at"
	keyUpdatedAt string = "updated_at"
)

type sandboxApp struct {
	store    Store
	notifier subscriptions.Notifier

	// serializes read-modify-write of objects so that increments are not lost
	mu  sync.Mutex
	now func() time.Time
}

func New(ctx context.Context, store Store) (App, error) {
	var notifier subscriptions.Notifier

	notifierEndpoint := env.GetVariableOrDefault(ctx, "NOTIFIER_ENDPOINT", "")
	if notifierEndpoint != "" {
		notifier, _ = subscriptions.NewNotifier(ctx, notifierEndpoint)
	}

	return newApp(store, notifier), nil
}

func newApp(store Store, notifier subscriptions.Notifier) *sandboxApp {
	return &sandboxApp{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (app *sandboxApp) Create(ctx context.Context, className string, payload map[string]any) (map[string]any, error) {
	if className == "" {
		return nil, fmt.Errorf("missing class name (%w)", errors.ErrBadRequest)
	}

	now := app.now()

	r := Record{
		ClassName:  className,
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Attributes: map[string]any{},
	}

	for key, value := range payload {
		if isReserved(key) {
			continue
		}

		resolved, err := resolve(nil, value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %s (%w)", key, err.Error(), errors.ErrBadRequest)
		}

		r.Attributes[key] = resolved
	}

	err := app.store.Insert(ctx, r)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("object created", "className", className, "id", r.ID)

	result := toObject(r)
	delete(result, keyClassName)

	if app.notifier != nil {
		app.notifier.ObjectCreated(ctx, className, toObject(r))
	}

	return result, nil
}

func (app *sandboxApp) Update(ctx context.Context, className, id string, payload map[string]any) (map[string]any, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	r, err := app.store.Get(ctx, className, id)
	if err != nil {
		return nil, err
	}

	result := map[string]any{}

	for key, value := range payload {
		if isReserved(key) {
			continue
		}

		resolved, err := resolve(r.Attributes[key], value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %s (%w)", key, err.Error(), errors.ErrBadRequest)
		}

		r.Attributes[key] = resolved
		result[key] = resolved
	}

	r.UpdatedAt = app.now()

	err = app.store.Replace(ctx, r)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("object updated", "className", className, "id", id, "keys", len(result))

	result[keyID] = r.ID
	result[keyUpdatedAt] = r.UpdatedAt.Format(TimeFormat)

	if app.notifier != nil {
		app.notifier.ObjectUpdated(ctx, className, toObject(r))
	}

	return result, nil
}

func (app *sandboxApp) Retrieve(ctx context.Context, className, id string) (map[string]any, error) {
	r, err := app.store.Get(ctx, className, id)
	if err != nil {
		return nil, err
	}

	return toObject(r), nil
}

func (app *sandboxApp) Destroy(ctx context.Context, className, id string) (map[string]any, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	err := app.store.Delete(ctx, className, id)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("object destroyed", "className", className, "id", id)

	if app.notifier != nil {
		app.notifier.ObjectDeleted(ctx, className, id)
	}

	return map[string]any{
		keyID:        id,
		keyUpdatedAt: app.now().Format(TimeFormat),
	}, nil
}

func (app *sandboxApp) Start() error {
	if app.notifier != nil {
		return app.notifier.Start()
	}

	return nil
}

func (app *sandboxApp) Stop() error {
	if app.notifier != nil {
		return app.notifier.Stop()
	}

	return nil
}

func isReserved(key string) bool {
	return key == keyClassName || key == keyID || key == keyCreatedAt || key == keyUpdatedAt
}

func toObject(r Record) map[string]any {
	object := make(map[string]any, len(r.Attributes)+4)

	for k, v := range r.Attributes {
		object[k] = v
	}

	object[keyClassName] = r.ClassName
	object[keyID] = r.ID
	object[keyCreatedAt] = r.CreatedAt.Format(TimeFormat)
	object[keyUpdatedAt] = r.UpdatedAt.Format(TimeFormat)

	return object
}

// resolve computes the value to store for an incoming wire value
func resolve(current, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return value, nil
	}

	tag, ok := types.TypeTag(m)
	if !ok {
		return value, nil
	}

	switch tag {
	case types.TypeIncrement:
		delta, ok := integer(m["value"])
		if !ok {
			return nil, fmt.Errorf("increment value must be an integer")
		}
		return add(current, delta), nil
	case types.TypePointer:
		className, _ := m["className"].(string)
		if className == "" || m["id"] == nil {
			return nil, fmt.Errorf("pointer without a class name or id")
		}
		return types.NewPointerValue(className, fmt.Sprint(m["id"])).Map(), nil
	case types.TypeFile:
		stored := make(map[string]any, len(m))
		for k, v := range m {
			if k != "attributes" {
				stored[k] = v
			}
		}
		return stored, nil
	}

	return value, nil
}

// add applies an increment to the current value. Anything that is not a number counts as 0.
func add(current any, delta int64) any {
	switch v := current.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i + delta
		}
		if f, err := v.Float64(); err == nil {
			return f + float64(delta)
		}
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
			return int64(v) + delta
		}
		return v + float64(delta)
	case int64:
		return v + delta
	case int:
		return int64(v) + delta
	}

	return delta
}

func integer(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}

	return 0, false
}
