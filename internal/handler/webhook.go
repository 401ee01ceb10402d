package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

// Ack is the body the gateway expects back from every callback.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accepted is returned for every callback from an allowed address. Anything
// else makes the gateway redeliver.
var Accepted = Ack{ResultCode: 0, ResultDesc: "Accepted"}

// ResultHandler consumes a normalised push-payment result.
type ResultHandler func(ctx context.Context, result mpesa.Result) error

// TransactionHandler consumes a normalised initiator-operation result.
type TransactionHandler func(ctx context.Context, result mpesa.TransactionResult) error

// WebhookReceiver turns gateway callbacks into handler calls.
type WebhookReceiver struct {
	onPayment     ResultHandler
	onTransaction TransactionHandler
	allowed       func(ip string) bool
	logger        *zap.Logger
}

// WebhookOption customizes the receiver.
type WebhookOption func(*WebhookReceiver)

// WithTransactionHandler handles Result payloads (B2C, reversal, balance, status).
func WithTransactionHandler(h TransactionHandler) WebhookOption {
	return func(r *WebhookReceiver) {
		r.onTransaction = h
	}
}

// WithAllowList replaces the gateway IP check, e.g. for sandbox tunnels.
func WithAllowList(fn func(ip string) bool) WebhookOption {
	return func(r *WebhookReceiver) {
		if fn != nil {
			r.allowed = fn
		}
	}
}

// WithWebhookLogger sets the receiver's logger.
func WithWebhookLogger(l *zap.Logger) WebhookOption {
	return func(r *WebhookReceiver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewWebhookReceiver builds a receiver that passes push-payment results to onPayment.
func NewWebhookReceiver(onPayment ResultHandler, opts ...WebhookOption) *WebhookReceiver {
	r := &WebhookReceiver{
		onPayment: onPayment,
		allowed:   mpesa.IsGatewayIP,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReceivePayment processes a push-payment callback body. Parse and handler
// failures are logged and still acknowledged.
func (r *WebhookReceiver) ReceivePayment(ctx context.Context, sourceIP string, body []byte) (int, any) {
	if !r.allowed(sourceIP) {
		r.logger.Warn("rejected callback from unknown address", zap.String("source_ip", sourceIP))
		return http.StatusForbidden, map[string]string{"error": "forbidden"}
	}

	result, err := mpesa.ParseResultJSON(body)
	if err != nil {
		r.logger.Error("malformed payment callback", zap.Error(err), zap.ByteString("body", body))
		return http.StatusOK, Accepted
	}

	r.logger.Info("payment callback",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.Int("result_code", result.ResultCode),
		zap.Bool("success", result.Success),
	)
	if r.onPayment != nil {
		r.invoke(func() error { return r.onPayment(ctx, result) })
	}
	return http.StatusOK, Accepted
}

// ReceiveTransaction processes a Result callback body.
func (r *WebhookReceiver) ReceiveTransaction(ctx context.Context, sourceIP string, body []byte) (int, any) {
	if !r.allowed(sourceIP) {
		r.logger.Warn("rejected callback from unknown address", zap.String("source_ip", sourceIP))
		return http.StatusForbidden, map[string]string{"error": "forbidden"}
	}

	result, err := mpesa.ParseTransactionResultJSON(body)
	if err != nil {
		r.logger.Error("malformed result callback", zap.Error(err), zap.ByteString("body", body))
		return http.StatusOK, Accepted
	}

	r.logger.Info("result callback",
		zap.String("conversation_id", result.ConversationID),
		zap.Int("result_code", result.ResultCode),
	)
	if r.onTransaction != nil {
		r.invoke(func() error { return r.onTransaction(ctx, result) })
	}
	return http.StatusOK, Accepted
}

// invoke runs a caller handler, containing both errors and panics.
func (r *WebhookReceiver) invoke(fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("callback handler panicked", zap.Any("panic", rec))
		}
	}()
	if err := fn(); err != nil {
		r.logger.Error("callback handler failed", zap.Error(err))
	}
}

// HandleAPIGateway adapts the receiver to an API Gateway proxy integration.
// Paths ending in /result carry initiator-operation results; everything else
// is treated as a push-payment callback.
func (r *WebhookReceiver) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			r.logger.Error("undecodable callback body", zap.Error(err))
			body = nil
		} else {
			body = decoded
		}
	}

	sourceIP := req.RequestContext.Identity.SourceIP
	var (
		status  int
		payload any
	)
	if strings.HasSuffix(strings.TrimSuffix(req.Path, "/"), "/result") {
		status, payload = r.ReceiveTransaction(ctx, sourceIP, body)
	} else {
		status, payload = r.ReceivePayment(ctx, sourceIP, body)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("encode acknowledgement: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}, nil
}

// RegisterWebhookRoutes mounts the receiver on a gin router at
// {prefix}/callback and {prefix}/result. The allow-list sees the socket peer
// address; forwarding headers are ignored.
func RegisterWebhookRoutes(router gin.IRouter, prefix string, r *WebhookReceiver) {
	prefix = strings.TrimSuffix(prefix, "/")
	router.POST(prefix+"/callback", func(c *gin.Context) {
		body, _ := c.GetRawData()
		status, payload := r.ReceivePayment(c.Request.Context(), c.RemoteIP(), body)
		c.JSON(status, payload)
	})
	router.POST(prefix+"/result", func(c *gin.Context) {
		body, _ := c.GetRawData()
		status, payload := r.ReceiveTransaction(c.Request.Context(), c.RemoteIP(), body)
		c.JSON(status, payload)
	})
}
