// Package review publishes post-commit notifications over NATS so human
// review tooling and downstream consumers can react to scoring outcomes.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

// NATS subjects for scoring outcome notifications.
const (
	SubjectQuarantined = "equilibrate.review.quarantined"
	SubjectApplied     = "equilibrate.score.applied"
)

// QuarantinedNotice is emitted for every quarantined event so moderators
// can inspect and, if warranted, manually replay it.
type QuarantinedNotice struct {
	EventID     string    `json:"eventId"`
	RaterID     string    `json:"raterId"`
	TargetID    string    `json:"targetId"`
	Stars       int       `json:"stars"`
	Polarity    string    `json:"polarity"`
	ClusterID   string    `json:"clusterId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// AppliedNotice is emitted for every applied event.
type AppliedNotice struct {
	EventID  string  `json:"eventId"`
	TargetID string  `json:"targetId"`
	Verdict  string  `json:"verdict"`
	Delta    float64 `json:"delta"`
	NewScore float64 `json:"newScore"`
}

// Publisher sends scoring outcome notifications over NATS.
type Publisher struct {
	conn *nats.Conn
	log  logger.Logger
}

// NewPublisher connects to the NATS server. The connection retries in the
// background, so a temporarily absent broker does not block startup.
func NewPublisher(ctx context.Context, url, token string) (*Publisher, error) {
	log := logger.Named("review")

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(ctx, "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info(ctx, "nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, log: log}, nil
}

// PublishQuarantined emits a quarantine notice.
func (p *Publisher) PublishQuarantined(_ context.Context, ev model.RatingEvent) error {
	return p.publish(SubjectQuarantined, QuarantinedNotice{
		EventID:     ev.EventID,
		RaterID:     ev.RaterID,
		TargetID:    ev.TargetID,
		Stars:       ev.Stars,
		Polarity:    string(ev.Polarity),
		ClusterID:   ev.ClusterID,
		SubmittedAt: ev.SubmittedAt,
	})
}

// PublishApplied emits an applied-score notice.
func (p *Publisher) PublishApplied(_ context.Context, ev model.RatingEvent, rec model.TrustRecord) error {
	return p.publish(SubjectApplied, AppliedNotice{
		EventID:  ev.EventID,
		TargetID: ev.TargetID,
		Verdict:  string(ev.Verdict),
		Delta:    ev.Delta,
		NewScore: rec.Score,
	})
}

func (p *Publisher) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

// Close drains the connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
