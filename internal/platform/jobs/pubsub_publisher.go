package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/packhouse/api/internal/services"
)

// PubSubIssuePublisher publishes plan diagnostic issues to a Pub/Sub topic so
// downstream tooling (procurement alerts, dashboards) can react to them.
type PubSubIssuePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubIssuePublisher constructs a Pub/Sub backed issue event publisher.
func NewPubSubIssuePublisher(topic *pubsub.Topic) (*PubSubIssuePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub issue publisher: topic is required")
	}
	return &PubSubIssuePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishIssueEvent enqueues one issue event on the configured topic and
// returns the server-assigned message ID.
func (p *PubSubIssuePublisher) PublishIssueEvent(ctx context.Context, event services.PlanIssueEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub issue publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal issue event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "planId", event.PlanID)
	setAttr(attrs, "kind", event.Kind)
	setAttr(attrs, "identifier", event.Identifier)
	setAttr(attrs, "quantity", strconv.Itoa(event.Quantity))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish issue event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.IssuePublisher = (*PubSubIssuePublisher)(nil)
