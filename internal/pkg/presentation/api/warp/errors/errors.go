package errors

import (
	"net/http"

	"github.com/diwise/warp/pkg/warp"
	warperrors "github.com/diwise/warp/pkg/warp/errors"
)

const ContentType string = "application/json"

// ReportError writes err as an error envelope with a status derived from it
func ReportError(w http.ResponseWriter, err error) {
	status := warperrors.StatusCode(err)
	code := warperrors.CodeOf(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	WriteResponse(w, status, warp.NewErrorEnvelope(status, int(code), message))
}

func ReportUnsupportedMediaType(w http.ResponseWriter) {
	WriteResponse(w, http.StatusUnsupportedMediaType,
		warp.NewErrorEnvelope(http.StatusUnsupportedMediaType, int(warperrors.InvalidObjectKey), "unsupported media type"),
	)
}

func ReportInvalidRequest(w http.ResponseWriter, detail string) {
	WriteResponse(w, http.StatusBadRequest,
		warp.NewErrorEnvelope(http.StatusBadRequest, int(warperrors.InvalidObjectKey), detail),
	)
}

func WriteResponse(w http.ResponseWriter, status int, envelope *warp.Envelope) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	w.Write(envelope.Bytes())
}
