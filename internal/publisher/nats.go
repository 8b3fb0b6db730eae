// Package publisher announces finished pipeline runs on NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

type NATSPublisher struct {
	nc      conn
	subject string
	metrics PublisherMetrics
}

// NewNATSPublisher connects to url and publishes run events on subject.
// m may be nil.
func NewNATSPublisher(url, subject string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("nyc-taxi"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			slog.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher.NewNATSPublisher: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, subject, m), nil
}

func newPublisher(nc conn, subject string, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, metrics: m}
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}
}

// RunCompletedMessage is the JSON body of a run event.
type RunCompletedMessage struct {
	RunID            uuid.UUID      `json:"run_id"`
	RuleVersion      string         `json:"rule_version"`
	Source           string         `json:"source"`
	Status           string         `json:"status"`
	TotalRows        int            `json:"total_rows"`
	AcceptedRows     int            `json:"accepted_rows"`
	ExcludedRows     int            `json:"excluded_rows"`
	ExcludedByReason map[string]int `json:"excluded_by_reason"`
	FinishedAt       *time.Time     `json:"finished_at"`
}

// NewRunCompletedMessage builds the event for run. Every reason code is
// present in ExcludedByReason, zero when the run saw none.
func NewRunCompletedMessage(run domain.Run) RunCompletedMessage {
	counts := make(map[string]int, len(domain.ReasonCodes))
	for _, r := range domain.ReasonCodes {
		counts[string(r)] = run.ExcludedByReason[r]
	}
	return RunCompletedMessage{
		RunID:            run.ID,
		RuleVersion:      run.RuleVersion,
		Source:           run.Source,
		Status:           string(run.Status),
		TotalRows:        run.TotalRows,
		AcceptedRows:     run.AcceptedRows,
		ExcludedRows:     run.ExcludedRows,
		ExcludedByReason: counts,
		FinishedAt:       run.FinishedAt,
	}
}

// RunCompleted publishes the event for run and waits for the server to
// acknowledge the flush or ctx to end.
func (p *NATSPublisher) RunCompleted(ctx context.Context, run domain.Run) error {
	b, err := json.Marshal(NewRunCompletedMessage(run))
	if err != nil {
		return fmt.Errorf("publisher.NATSPublisher.RunCompleted: %w", err)
	}

	start := time.Now()
	err = p.nc.Publish(p.subject, b)
	if err == nil {
		err = p.nc.FlushWithContext(ctx)
	}
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publisher.NATSPublisher.RunCompleted: %w", err)
	}
	slog.DebugContext(ctx, "nats publish", "subject", p.subject, "run_id", run.ID)
	return nil
}
