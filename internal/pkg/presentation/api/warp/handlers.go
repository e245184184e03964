package warp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/internal/pkg/application/sandbox"
	"github.com/diwise/warp/internal/pkg/presentation/api/warp/auth"
	apierrors "github.com/diwise/warp/internal/pkg/presentation/api/warp/errors"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

const APIPrefix string = "/api/1"

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, keys auth.Keys, app sandbox.App) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies, keys)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			RequiredContentTypes([]string{"application/json"}),
		)

		r.Route("/classes/{className}", func(r chi.Router) {
			r.Post("/", NewCreateObjectHandler(app, authenticator))

			r.Get("/{id}", NewRetrieveObjectHandler(app, authenticator))
			r.Put("/{id}", NewUpdateObjectHandler(app, authenticator))
			r.Delete("/{id}", NewDestroyObjectHandler(app, authenticator))
		})
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				apierrors.ReportUnsupportedMediaType(w)
			}
		})
	}
}
