package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/types"
)

type inProcessTransport struct {
	app App
}

// NewTransport lets objects be saved directly to app without going over HTTP
func NewTransport(app App) types.Transport {
	return &inProcessTransport{app: app}
}

func (t *inProcessTransport) Create(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	className, err := classFromEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return t.app.Create(ctx, className, payload)
}

func (t *inProcessTransport) Update(ctx context.Context, endpoint, id string, payload map[string]any) (map[string]any, error) {
	className, err := classFromEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return t.app.Update(ctx, className, id, payload)
}

func (t *inProcessTransport) Destroy(ctx context.Context, endpoint, id string) error {
	className, err := classFromEndpoint(endpoint)
	if err != nil {
		return err
	}
	_, err = t.app.Destroy(ctx, className, id)
	return err
}

func classFromEndpoint(endpoint string) (string, error) {
	className, ok := strings.CutPrefix(endpoint, "classes/")
	if !ok || className == "" || strings.Contains(className, "/") {
		return "", fmt.Errorf("unsupported endpoint %q (%w)", endpoint, errors.ErrNotFound)
	}
	return className, nil
}
