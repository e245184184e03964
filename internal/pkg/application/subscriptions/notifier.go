package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Notifier interface {
	Start() error
	Stop() error

	ObjectCreated(ctx context.Context, className string, object map[string]any)
	ObjectUpdated(ctx context.Context, className string, object map[string]any)
	ObjectDeleted(ctx context.Context, className, id string)
}

const (
	EventCreated string = "created"
	EventUpdated string = "updated"
	EventDeleted string = "deleted"
)

type Notification struct {
	Event     string         `json:"event"`
	ClassName string         `json:"className"`
	Object    map[string]any `json:"object"`
}

var tracer = otel.Tracer("warp-sandbox/notifier")

type action func()

type notifier struct {
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notifier needs an endpoint")
	}

	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			// closing the queue makes run return once this action is done
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) ObjectCreated(ctx context.Context, className string, object map[string]any) {
	n.enqueue(ctx, Notification{Event: EventCreated, ClassName: className, Object: object})
}

func (n *notifier) ObjectUpdated(ctx context.Context, className string, object map[string]any) {
	n.enqueue(ctx, Notification{Event: EventUpdated, ClassName: className, Object: object})
}

func (n *notifier) ObjectDeleted(ctx context.Context, className, id string) {
	n.enqueue(ctx, Notification{Event: EventDeleted, ClassName: className, Object: map[string]any{"id": id}})
}

func (n *notifier) enqueue(ctx context.Context, notification Notification) {
	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
		trace.WithAttributes(attribute.String("warp-event", notification.Event)),
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = postNotification(ctx, notification, n.endpoint)
		if err != nil {
			logger.Error("failed to post notification", "event", notification.Event, "err", err.Error())
		}
	}
}

func postNotification(ctx context.Context, notification Notification, endpoint string) error {
	body, err := json.MarshalIndent(notification, "", " ")
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint returned status code %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
