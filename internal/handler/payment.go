package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

// Outcome statuses reported by the processor.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// EventPaymentOutcome tags notifier deliveries from the processor.
const EventPaymentOutcome = "payment.outcome"

// PaymentClient is the subset of the gateway client the processor uses.
type PaymentClient interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// PaymentEvent is the payload sent to the Lambda function.
type PaymentEvent struct {
	Phone       string          `json:"phone"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// PaymentOutcome is emitted once polling concludes.
type PaymentOutcome struct {
	CheckoutRequestID string       `json:"checkoutRequestId"`
	MerchantRequestID string       `json:"merchantRequestId"`
	Status            string       `json:"status"`
	Confirmed         bool         `json:"confirmed"`
	ResultCode        string       `json:"resultCode,omitempty"`
	ResultDesc        string       `json:"resultDesc,omitempty"`
	Message           string       `json:"message,omitempty"`
	Request           PaymentEvent `json:"request"`
}

// Notifier delivers outcomes to downstream systems.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

// Processor pushes a payment prompt and polls until the customer answers.
type Processor struct {
	client       PaymentClient
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
	notifier     Notifier
}

// Option customizes the processor.
type Option func(*Processor)

// WithPollInterval adjusts the delay between status queries.
func WithPollInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithTimeout overrides how long the processor waits for the customer.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger lets callers supply a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithNotifier wires the destination invoked after processing concludes.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) {
		p.notifier = n
	}
}

// NewProcessor builds a Processor with sane defaults.
func NewProcessor(client PaymentClient, opts ...Option) *Processor {
	p := &Processor{
		client:       client,
		pollInterval: 5 * time.Second,
		timeout:      2 * time.Minute,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handle implements the AWS Lambda handler entry point.
func (p *Processor) Handle(ctx context.Context, event PaymentEvent) (PaymentOutcome, error) {
	if err := validateEvent(event); err != nil {
		return PaymentOutcome{}, err
	}

	p.logger.Info("initiating stk push",
		zap.String("phone", event.Phone),
		zap.String("amount", event.Amount.String()),
		zap.String("reference", event.Reference),
	)
	push, err := p.client.STKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      event.Phone,
		Amount:           event.Amount,
		AccountReference: event.Reference,
		TransactionDesc:  event.Description,
	})
	if err != nil {
		return PaymentOutcome{}, fmt.Errorf("stk push failed: %w", err)
	}

	checkoutID := push.CheckoutRequestID
	p.logger.Info("stk push accepted; starting polling", zap.String("checkout_request_id", checkoutID))

	query, err := p.pollStatus(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			outcome := PaymentOutcome{
				CheckoutRequestID: checkoutID,
				MerchantRequestID: push.MerchantRequestID,
				Status:            StatusPending,
				Message:           fmt.Sprintf("payment not confirmed within %s", p.timeout),
				Request:           event,
			}
			p.emit(ctx, outcome)
			return outcome, nil
		}
		return PaymentOutcome{}, err
	}

	outcome := PaymentOutcome{
		CheckoutRequestID: checkoutID,
		MerchantRequestID: push.MerchantRequestID,
		Status:            StatusFailed,
		Confirmed:         true,
		ResultCode:        query.ResultCode.String(),
		ResultDesc:        query.ResultDesc,
		Request:           event,
	}
	if outcome.ResultCode == "0" {
		outcome.Status = StatusSuccess
	}
	p.emit(ctx, outcome)
	return outcome, nil
}

func (p *Processor) pollStatus(ctx context.Context, checkoutID string) (*mpesa.STKQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// "Still processing" arrives as a 5xx; the ticker is the retry loop.
	queryCtx := mpesa.WithMaxAttempts(ctx, 1)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		resp, err := p.client.STKQuery(queryCtx, checkoutID)
		if err == nil {
			p.logger.Info("stk push settled",
				zap.String("checkout_request_id", checkoutID),
				zap.String("result_code", resp.ResultCode.String()),
			)
			return resp, nil
		}

		if !isInProgress(err) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		p.logger.Debug("stk push not settled; waiting",
			zap.String("checkout_request_id", checkoutID),
			zap.Duration("interval", p.pollInterval),
		)
	}
}

// isInProgress reports whether the gateway is still waiting on the customer.
func isInProgress(err error) bool {
	e, ok := mpesa.AsError(err)
	return ok && e.Kind == mpesa.KindAPI && e.Code == mpesa.CodeTransactionInProgress
}

func validateEvent(event PaymentEvent) error {
	if strings.TrimSpace(event.Phone) == "" {
		return errors.New("phone is required")
	}
	if !event.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if strings.TrimSpace(event.Reference) == "" {
		return errors.New("reference is required")
	}
	return nil
}

func (p *Processor) emit(ctx context.Context, outcome PaymentOutcome) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, EventPaymentOutcome, outcome); err != nil {
		p.logger.Error("outcome delivery failed", zap.Error(err))
	}
}
