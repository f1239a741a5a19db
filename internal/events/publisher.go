// Package events publishes session lifecycle facts to a fanout exchange
// for downstream consumers (analytics, history). Publishing is
// best-effort and never blocks the quiz protocol.
package events

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/session"
)

const Exchange = "pairquiz.sessions"

type Publisher interface {
	SessionFinished(s session.State)
}

// SessionFinishedEvent is the published body for completed and
// cancelled sessions.
type SessionFinishedEvent struct {
	SessionID     string         `json:"sessionId"`
	SessionCode   string         `json:"sessionCode"`
	Status        session.Status `json:"status"`
	HostUserID    string         `json:"hostUserId"`
	PartnerUserID string         `json:"partnerUserId,omitempty"`
	HostScore     *float64       `json:"hostScore,omitempty"`
	PartnerScore  *float64       `json:"partnerScore,omitempty"`
	FinishedAt    time.Time      `json:"finishedAt"`
}

type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

func NewAMQPPublisher(amqpURL string, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, log: log}, nil
}

func (p *AMQPPublisher) SessionFinished(s session.State) {
	body, err := json.Marshal(SessionFinishedEvent{
		SessionID:     s.SessionID,
		SessionCode:   s.SessionCode,
		Status:        s.Status,
		HostUserID:    s.HostUserID,
		PartnerUserID: s.PartnerUserID,
		HostScore:     s.HostScore,
		PartnerScore:  s.PartnerScore,
		FinishedAt:    time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("marshal session event", zap.Error(err))
		return
	}

	err = p.channel.Publish(Exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.log.Warn("publish session event",
			zap.String("session_id", s.SessionID),
			zap.Error(err))
	}
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) SessionFinished(session.State) {}
