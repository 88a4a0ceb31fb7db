package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Notifier interface {
	Start() error
	Stop() error

	EntityCreated(ctx context.Context, mapper string, record map[string]string)
	EntityUpdated(ctx context.Context, mapper string, record map[string]string)
}

const (
	EventCreated string = "created"
	EventUpdated string = "updated"
)

// Notification is the message posted to the notification endpoint for every
// bound entity
type Notification struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Event      string              `json:"event"`
	Mapper     string              `json:"mapper"`
	NotifiedAt string              `json:"notifiedAt"`
	Data       []map[string]string `json:"data"`
}

func NewNotification(event, mapper string, record map[string]string) Notification {
	return Notification{
		ID:         fmt.Sprintf("urn:ngsi-ld:Notification:%s", uuid.NewString()),
		Type:       "Notification",
		Event:      event,
		Mapper:     mapper,
		NotifiedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:       []map[string]string{record},
	}
}

var tracer = otel.Tracer("entity-binder/notifier")

type action func()

type notifier struct {
	mu       sync.Mutex
	started  bool
	done     chan struct{}
	finished chan struct{}

	endpoint string

	httpClient http.Client
	queue      chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notification endpoint is required")
	}

	return &notifier{
		endpoint: endpoint,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		queue: make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true
	n.done = make(chan struct{})
	n.finished = make(chan struct{})

	go n.run(n.done, n.finished)

	return nil
}

// Stop waits until all notifications queued so far have been posted
func (n *notifier) Stop() error {
	n.mu.Lock()

	if !n.started {
		n.mu.Unlock()
		return nil
	}

	n.started = false
	close(n.done)
	finished := n.finished

	n.mu.Unlock()

	<-finished

	return nil
}

func (n *notifier) EntityCreated(ctx context.Context, mapper string, record map[string]string) {
	n.enqueue(ctx, NewNotification(EventCreated, mapper, record))
}

func (n *notifier) EntityUpdated(ctx context.Context, mapper string, record map[string]string) {
	n.enqueue(ctx, NewNotification(EventUpdated, mapper, record))
}

func (n *notifier) enqueue(ctx context.Context, notification Notification) {
	n.mu.Lock()
	started, done := n.started, n.done
	n.mu.Unlock()

	if !started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
		trace.WithAttributes(attribute.String("mapper", notification.Mapper)),
	)

	post := func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = n.post(ctx, notification)
		if err != nil {
			logger.Error("failed to post notification", "mapper", notification.Mapper, "err", err.Error())
		}
	}

	select {
	case n.queue <- post:
	case <-done:
		err = fmt.Errorf("notifier stopped before the notification could be queued")
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}
}

func (n *notifier) post(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint returned status code %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run(done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)

	for {
		select {
		case post := <-n.queue:
			post()
		case <-done:
			// post what was queued before the notifier was stopped
			for {
				select {
				case post := <-n.queue:
					post()
				default:
					return
				}
			}
		}
	}
}
