package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
)

// natsPublisher is the subset of *nats.Conn the publisher needs.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// SubmissionPublisher announces accepted submissions on NATS for downstream
// consumers such as reporting.
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so a broker outage never fails a submission that every sink
// already accepted. A nil publisher is valid and does nothing.
type SubmissionPublisher struct {
	conn    natsPublisher
	subject string
	log     *logger.Logger
}

// SubmissionEvent is the JSON schema published to NATS.
type SubmissionEvent struct {
	EventType    string     `json:"event_type"`
	RecordID     string     `json:"record_id"`
	ContractID   string     `json:"contract_id"`
	StaffAccount string     `json:"staff_account"`
	Reasons      []string   `json:"reasons"`
	LockOption   string     `json:"lock_option"`
	LockDate     *time.Time `json:"lock_date,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// EventSubmissionAccepted is the event type of SubmissionEvent.
const EventSubmissionAccepted = "nonpayment_reason_accepted"

// ConnectNATS dials url. The caller closes the connection.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// NewSubmissionPublisher creates a publisher on conn.
func NewSubmissionPublisher(conn *nats.Conn, subject string, log *logger.Logger) *SubmissionPublisher {
	if conn == nil {
		return nil
	}
	return newSubmissionPublisher(conn, subject, log)
}

func newSubmissionPublisher(conn natsPublisher, subject string, log *logger.Logger) *SubmissionPublisher {
	return &SubmissionPublisher{conn: conn, subject: subject, log: log.Component("events")}
}

// PublishAccepted publishes a SubmissionEvent for rec.
func (p *SubmissionPublisher) PublishAccepted(ctx context.Context, rec *domain.SubmissionRecord) {
	if p == nil || p.conn == nil || rec == nil {
		return
	}

	event := SubmissionEvent{
		EventType:    EventSubmissionAccepted,
		RecordID:     rec.ID,
		ContractID:   rec.ContractID,
		StaffAccount: rec.StaffAccount,
		Reasons:      rec.Draft.Reasons(),
		LockOption:   string(rec.Draft.LockOption),
		LockDate:     rec.Draft.LockDate,
		OccurredAt:   rec.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Msg("event: failed to marshal submission event")
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", p.subject).
			Str("record_id", rec.ID).
			Msg("event: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", p.subject).
		Str("record_id", rec.ID).
		Msg("event: submission published")
}
