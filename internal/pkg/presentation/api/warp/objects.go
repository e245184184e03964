package warp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/warp/internal/pkg/application/sandbox"
	"github.com/diwise/warp/internal/pkg/presentation/api/warp/auth"
	apierrors "github.com/diwise/warp/internal/pkg/presentation/api/warp/errors"
	envelope "github.com/diwise/warp/pkg/warp"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("warp-sandbox/api/objects")

const (
	TraceAttributeClassName string = "warp-class"
	TraceAttributeObjectID  string = "warp-object-id"
)

// NewCreateObjectHandler handles POST requests for new objects
func NewCreateObjectHandler(app sandbox.App, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		className := chi.URLParam(r, "className")

		ctx, span := tracer.Start(r.Context(), "create-object",
			trace.WithAttributes(attribute.String(TraceAttributeClassName, className)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, className)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		payload, err := decodePayload(r.Body)
		if err != nil {
			apierrors.ReportInvalidRequest(w, err.Error())
			return
		}

		result, err := app.Create(ctx, className, payload)
		if err != nil {
			logging.GetFromContext(ctx).Error("failed to create object", "className", className, "err", err.Error())
			apierrors.ReportError(w, err)
			return
		}

		apierrors.WriteResponse(w, http.StatusOK, envelope.NewSuccessEnvelope(result))
	})
}

func NewRetrieveObjectHandler(app sandbox.App, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		className := chi.URLParam(r, "className")
		id := chi.URLParam(r, "id")

		ctx, span := tracer.Start(r.Context(), "retrieve-object",
			trace.WithAttributes(attribute.String(TraceAttributeClassName, className)),
			trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, className)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		result, err := app.Retrieve(ctx, className, id)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		apierrors.WriteResponse(w, http.StatusOK, envelope.NewSuccessEnvelope(result))
	})
}

func NewUpdateObjectHandler(app sandbox.App, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		className := chi.URLParam(r, "className")
		id := chi.URLParam(r, "id")

		ctx, span := tracer.Start(r.Context(), "update-object",
			trace.WithAttributes(attribute.String(TraceAttributeClassName, className)),
			trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, className)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		payload, err := decodePayload(r.Body)
		if err != nil {
			apierrors.ReportInvalidRequest(w, err.Error())
			return
		}

		result, err := app.Update(ctx, className, id, payload)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		apierrors.WriteResponse(w, http.StatusOK, envelope.NewSuccessEnvelope(result))
	})
}

func NewDestroyObjectHandler(app sandbox.App, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		className := chi.URLParam(r, "className")
		id := chi.URLParam(r, "id")

		ctx, span := tracer.Start(r.Context(), "destroy-object",
			trace.WithAttributes(attribute.String(TraceAttributeClassName, className)),
			trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, className)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		result, err := app.Destroy(ctx, className, id)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		apierrors.WriteResponse(w, http.StatusOK, envelope.NewSuccessEnvelope(result))
	})
}

func decodePayload(body io.Reader) (map[string]any, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("unable to read request payload: %s", err.Error())
	}

	payload := map[string]any{}
	if len(bytes.TrimSpace(b)) == 0 {
		return payload, nil
	}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	err = d.Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("unable to decode request payload: %s", err.Error())
	}

	return payload, nil
}
