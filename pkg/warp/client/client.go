package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/warp/pkg/warp"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

type Client interface {
	types.Transport
}

const (
	HeaderAPIKey         string = "X-Warp-API-Key"
	HeaderMasterKey      string = "X-Warp-Master-Key"
	HeaderSessionToken   string = "X-Warp-Session-Token"
	HeaderClientPlatform string = "X-Warp-Client-Platform"
)

const DefaultTimeout time.Duration = 30 * time.Second

type ClientOption func(*warpClient)

func APIKey(key string) ClientOption {
	return func(c *warpClient) {
		c.apiKey = key
	}
}

func MasterKey(key string) ClientOption {
	return func(c *warpClient) {
		c.masterKey = key
	}
}

func SessionToken(token string) ClientOption {
	return func(c *warpClient) {
		c.sessionToken = token
	}
}

func Platform(platform string) ClientOption {
	return func(c *warpClient) {
		c.platform = platform
	}
}

func Timeout(timeout time.Duration) ClientOption {
	return func(c *warpClient) {
		c.timeout = timeout
	}
}

// MaxRequests limits the number of requests that may be in flight at the same time
func MaxRequests(max int64) ClientOption {
	return func(c *warpClient) {
		if max > 0 {
			c.inflight = semaphore.NewWeighted(max)
		}
	}
}

func Debug(enabled string) ClientOption {
	return func(c *warpClient) {
		c.debug = (enabled == "true")
	}
}

func New(serverURL string, options ...ClientOption) Client {
	c := &warpClient{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		timeout: DefaultTimeout,
	}

	for _, option := range options {
		option(c)
	}

	c.httpClient = http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   c.timeout,
	}

	return c
}

const (
	TraceAttributeClassName string = "warp-class"
	TraceAttributeObjectID  string = "warp-object-id"
)

var tracer = otel.Tracer("warp-client")

type warpClient struct {
	baseURL      string
	apiKey       string
	masterKey    string
	sessionToken string
	platform     string
	timeout      time.Duration
	debug        bool

	inflight   *semaphore.Weighted
	httpClient http.Client
}

func (c *warpClient) Create(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-object",
		trace.WithAttributes(attribute.String(TraceAttributeClassName, className(endpoint))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(payload)
	if err != nil {
		err = fmt.Errorf("failed to marshal payload: %s (%w)", err.Error(), errors.ErrBadRequest)
		return nil, err
	}

	result, err := c.callWarpServer(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *warpClient) Update(ctx context.Context, endpoint, id string, payload map[string]any) (map[string]any, error) {
	var err error

	ctx, span := tracer.Start(ctx, "update-object",
		trace.WithAttributes(attribute.String(TraceAttributeClassName, className(endpoint))),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(payload)
	if err != nil {
		err = fmt.Errorf("failed to marshal payload: %s (%w)", err.Error(), errors.ErrBadRequest)
		return nil, err
	}

	result, err := c.callWarpServer(ctx, http.MethodPut, c.baseURL+"/"+endpoint+"/"+url.PathEscape(id), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *warpClient) Destroy(ctx context.Context, endpoint, id string) error {
	var err error

	ctx, span := tracer.Start(ctx, "destroy-object",
		trace.WithAttributes(attribute.String(TraceAttributeClassName, className(endpoint))),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, err = c.callWarpServer(ctx, http.MethodDelete, c.baseURL+"/"+endpoint+"/"+url.PathEscape(id), nil)

	return err
}

func (c *warpClient) callWarpServer(ctx context.Context, method, endpoint string, body io.Reader) (map[string]any, error) {
	if c.inflight != nil {
		if err := c.inflight.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire request slot: %s (%w)", err.Error(), errors.ErrRequest)
		}
		defer c.inflight.Release(1)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)

	if c.masterKey != "" {
		req.Header.Set(HeaderMasterKey, c.masterKey)
	}

	if c.sessionToken != "" {
		req.Header.Set(HeaderSessionToken, c.sessionToken)
	}

	if c.platform != "" {
		req.Header.Set(HeaderClientPlatform, c.platform)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.NewErrorFromResponse(resp.StatusCode, respBody)
	}

	envelope, err := warp.NewEnvelopeFromJSON(respBody)
	if err != nil {
		if c.debug && len(respBody) < 1000 {
			return nil, fmt.Errorf("unmarshaling of %s failed with err %s (%w)", string(respBody), err.Error(), errors.ErrBadResponse)
		}
		return nil, fmt.Errorf("failed to decode response: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	return envelope.Result, nil
}

func className(endpoint string) string {
	return strings.TrimPrefix(endpoint, "classes/")
}
