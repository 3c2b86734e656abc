// Package alert delivers operator alerts for conditions the engine refuses
// to correct on its own.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Alert kinds.
const (
	KindDeadLetter              = "EVENT_DEAD_LETTER"
	KindLedgerIntegrityMismatch = "LEDGER_INTEGRITY_MISMATCH"
	KindReviewerFlagged         = "REVIEWER_FLAGGED"
	KindReconcileReplayFailed   = "RECONCILE_REPLAY_FAILED"
)

// Severity levels.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a single operator notification.
type Alert struct {
	Kind     string                 `json:"kind"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	RaisedAt time.Time              `json:"raised_at"`
}

// Notifier sends alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert at error level for critical alerts and warn otherwise.
func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	kv := []interface{}{"alert_kind", a.Kind, "severity", a.Severity, "raised_at", a.RaisedAt}
	for k, v := range a.Fields {
		kv = append(kv, k, v)
	}
	if a.Severity == SeverityCritical {
		n.logger.Errorw(a.Message, kv...)
	} else {
		n.logger.Warnw(a.Message, kv...)
	}
	return nil
}

// Publisher is the subset of *nats.Conn used for publishing.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes alerts as JSON on a NATS subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

// NewNATSNotifier creates a notifier publishing on subject.
func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

// Connect dials NATS at url with reconnects enabled.
func Connect(url string, logger *zap.SugaredLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("contribution-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Notify publishes the alert.
func (n *NATSNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Notify sends to all notifiers even when some fail.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards alerts.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Alert) error { return nil }
