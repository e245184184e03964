package auth

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/warp/pkg/warp/client"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("warp-sandbox/authz")

//go:embed default.rego
var defaultPolicy []byte

// DefaultPolicy returns the policy used when no other policy has been configured
func DefaultPolicy() io.Reader {
	return bytes.NewReader(defaultPolicy)
}

type Enticator interface {
	CheckAccess(ctx context.Context, r *http.Request, className string) error
}

// Keys is the data the policies are evaluated against
type Keys struct {
	APIKeys         []string
	MasterKey       string
	ReadOnlyClasses []string
}

type enticatorImpl struct {
	preparedQuery rego.PreparedEvalQuery
}

func NewAuthenticator(ctx context.Context, policies io.Reader, keys Keys) (Enticator, error) {
	if policies == nil {
		policies = DefaultPolicy()
	}

	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %s", err.Error())
	}

	data := map[string]any{
		"warp": map[string]any{
			"apiKeys":         anySlice(keys.APIKeys),
			"masterKey":       keys.MasterKey,
			"readOnlyClasses": anySlice(keys.ReadOnlyClasses),
		},
	}

	impl := &enticatorImpl{}

	impl.preparedQuery, err = rego.New(
		rego.Query("allow = data.warp.authz.allow; authenticated = data.warp.authz.authenticated"),
		rego.Module("warp.rego", string(module)),
		rego.Store(inmem.NewFromObject(data)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return impl, nil
}

func (e *enticatorImpl) CheckAccess(ctx context.Context, r *http.Request, className string) error {
	var err error

	_, span := tracer.Start(ctx, "check-auth")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	path := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	input := map[string]any{
		"method":    r.Method,
		"path":      path,
		"apiKey":    r.Header.Get(client.HeaderAPIKey),
		"masterKey": r.Header.Get(client.HeaderMasterKey),
		"className": className,
	}

	results, err := e.preparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		err = fmt.Errorf("opa eval failed: %w", err)
		return err
	}

	if len(results) == 0 {
		err = fmt.Errorf("auth failed: opa query could not be satisfied (%w)", errors.ErrUnauthorized)
		return err
	}

	authenticated, _ := results[0].Bindings["authenticated"].(bool)
	if !authenticated {
		err = fmt.Errorf("unknown api key (%w)", errors.ErrUnauthorized)
		return err
	}

	allowed, ok := results[0].Bindings["allow"].(bool)
	if !ok {
		err = fmt.Errorf("opa error: unexpected result type")
		return err
	}

	if !allowed {
		err = fmt.Errorf("%s %s requires the master key (%w)", r.Method, className, errors.ErrForbidden)
		return err
	}

	return nil
}

func anySlice(values []string) []any {
	s := make([]any, 0, len(values))
	for _, v := range values {
		s = append(s, v)
	}
	return s
}
