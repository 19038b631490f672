package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

type EventType string

const (
	EventIntraLedgerTxReceived EventType = "intraledger_tx_received"
	EventBalance               EventType = "balance"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event is the JSON value of every message. Messages are keyed by account
// id so that one account's notifications stay ordered.
type Event struct {
	Type            EventType `json:"type"`
	AccountID       uuid.UUID `json:"account_id"`
	WalletID        uuid.UUID `json:"wallet_id"`
	WalletCurrency  string    `json:"wallet_currency"`
	Amount          uint64    `json:"amount"`
	DisplayAmount   string    `json:"display_amount,omitempty"`
	DisplayCurrency string    `json:"display_currency,omitempty"`
	DeviceTokens    []string  `json:"device_tokens,omitempty"`
	Language        string    `json:"language,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer, now: time.Now}
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

type IntraLedgerTxReceivedArgs struct {
	RecipientAccountID uuid.UUID
	RecipientWalletID  uuid.UUID
	Amount             domain.WalletAmount
	DisplayAmount      domain.DisplayAmount
	DeviceTokens       []string
	Language           string
}

func (p *Publisher) IntraLedgerTxReceived(ctx context.Context, args IntraLedgerTxReceivedArgs) error {
	err := p.publish(ctx, Event{
		Type:            EventIntraLedgerTxReceived,
		AccountID:       args.RecipientAccountID,
		WalletID:        args.RecipientWalletID,
		WalletCurrency:  string(args.Amount.Currency),
		Amount:          args.Amount.Amount,
		DisplayAmount:   args.DisplayAmount.DisplayInMajor,
		DisplayCurrency: string(args.DisplayAmount.Currency),
		DeviceTokens:    args.DeviceTokens,
		Language:        args.Language,
	})
	if err != nil {
		return fmt.Errorf("IntraLedgerTxReceived: %w", err)
	}
	return nil
}

type BalanceArgs struct {
	AccountID     uuid.UUID
	WalletID      uuid.UUID
	Balance       domain.WalletAmount
	DisplayAmount domain.DisplayAmount
	DeviceTokens  []string
	Language      string
}

func (p *Publisher) SendBalance(ctx context.Context, args BalanceArgs) error {
	err := p.publish(ctx, Event{
		Type:            EventBalance,
		AccountID:       args.AccountID,
		WalletID:        args.WalletID,
		WalletCurrency:  string(args.Balance.Currency),
		Amount:          args.Balance.Amount,
		DisplayAmount:   args.DisplayAmount.DisplayInMajor,
		DisplayCurrency: string(args.DisplayAmount.Currency),
		DeviceTokens:    args.DeviceTokens,
		Language:        args.Language,
	})
	if err != nil {
		return fmt.Errorf("SendBalance: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, e Event) error {
	e.OccurredAt = p.now().UTC()
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.AccountID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", e.Type, err)
	}
	return nil
}
