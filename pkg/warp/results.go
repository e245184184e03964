package warp

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Envelope is the body of every response from a Warp server
type Envelope struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result,omitempty"`
	Code    int            `json:"code,omitempty"`
}

func NewSuccessEnvelope(result map[string]any) *Envelope {
	return &Envelope{
		Status:  http.StatusOK,
		Message: "Success",
		Result:  result,
	}
}

func NewErrorEnvelope(status, code int, message string) *Envelope {
	return &Envelope{
		Status:  status,
		Message: message,
		Code:    code,
	}
}

func (e *Envelope) Bytes() []byte {
	b, _ := json.Marshal(e)
	return b
}

// NewEnvelopeFromJSON decodes a response body, keeping numbers as json.Number
func NewEnvelopeFromJSON(body []byte) (*Envelope, error) {
	e := &Envelope{}

	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.UseNumber()

		err := d.Decode(e)
		if err != nil {
			return nil, err
		}
	}

	if e.Result == nil {
		e.Result = map[string]any{}
	}

	return e, nil
}
