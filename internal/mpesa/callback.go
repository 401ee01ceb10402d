package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// MetadataItem is one {Name, Value} pair of a push-payment callback.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// CallbackMetadata lists the items attached to a successful push payment.
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// STKCallback is the body of a push-payment result notification.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackPayload is the envelope the gateway posts to the callback URL.
type CallbackPayload struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Result is the canonical form of a push-payment outcome. The optional
// fields are nil unless the payment succeeded and the item was present.
type Result struct {
	Success            bool             `json:"success"`
	ResultCode         int              `json:"resultCode"`
	ResultDesc         string           `json:"resultDesc"`
	MerchantRequestID  string           `json:"merchantRequestId"`
	CheckoutRequestID  string           `json:"checkoutRequestId"`
	MpesaReceiptNumber *string          `json:"mpesaReceiptNumber"`
	TransactionDate    *time.Time       `json:"transactionDate"`
	PhoneNumber        *string          `json:"phoneNumber"`
	Amount             *decimal.Decimal `json:"amount"`
}

// ParseResult normalises a decoded callback payload. It performs no I/O.
func ParseResult(payload CallbackPayload) Result {
	cb := payload.Body.STKCallback
	result := Result{
		Success:           cb.ResultCode == 0,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
	}
	if !result.Success || cb.CallbackMetadata == nil {
		return result
	}

	for _, item := range cb.CallbackMetadata.Item {
		if item.Value == nil {
			continue
		}
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(scalarString(item.Value)); err == nil {
				result.Amount = &amount
			}
		case "MpesaReceiptNumber":
			receipt := scalarString(item.Value)
			result.MpesaReceiptNumber = &receipt
		case "PhoneNumber":
			phone := scalarString(item.Value)
			result.PhoneNumber = &phone
		case "TransactionDate":
			if date, err := ParseGatewayDate(item.Value); err == nil {
				result.TransactionDate = &date
			}
		}
	}
	return result
}

// ParseResultJSON decodes raw callback bytes and normalises them. Numbers are
// kept exact so 12-digit phone numbers survive.
func ParseResultJSON(data []byte) (Result, error) {
	var payload CallbackPayload
	if err := decodeExact(data, &payload); err != nil {
		return Result{}, fmt.Errorf("decode callback: %w", err)
	}
	return ParseResult(payload), nil
}

// ResultParameter is one {Key, Value} pair of an initiator-operation result.
type ResultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value,omitempty"`
}

// ResultParameters lists the parameters attached to a result.
type ResultParameters struct {
	ResultParameter []ResultParameter `json:"ResultParameter"`
}

// ResultPayload is the envelope for business payment, reversal, balance and
// status results.
type ResultPayload struct {
	Result struct {
		ResultType               int               `json:"ResultType"`
		ResultCode               int               `json:"ResultCode"`
		ResultDesc               string            `json:"ResultDesc"`
		OriginatorConversationID string            `json:"OriginatorConversationID"`
		ConversationID           string            `json:"ConversationID"`
		TransactionID            string            `json:"TransactionID"`
		ResultParameters         *ResultParameters `json:"ResultParameters,omitempty"`
	} `json:"Result"`
}

// TransactionResult is the canonical form of a ResultPayload.
type TransactionResult struct {
	Success                  bool              `json:"success"`
	ResultType               int               `json:"resultType"`
	ResultCode               int               `json:"resultCode"`
	ResultDesc               string            `json:"resultDesc"`
	OriginatorConversationID string            `json:"originatorConversationId"`
	ConversationID           string            `json:"conversationId"`
	TransactionID            string            `json:"transactionId"`
	Parameters               map[string]string `json:"parameters,omitempty"`
}

// ParseTransactionResult normalises an initiator-operation result.
func ParseTransactionResult(payload ResultPayload) TransactionResult {
	r := payload.Result
	result := TransactionResult{
		Success:                  r.ResultCode == 0,
		ResultType:               r.ResultType,
		ResultCode:               r.ResultCode,
		ResultDesc:               r.ResultDesc,
		OriginatorConversationID: r.OriginatorConversationID,
		ConversationID:           r.ConversationID,
		TransactionID:            r.TransactionID,
	}
	if r.ResultParameters != nil && len(r.ResultParameters.ResultParameter) > 0 {
		result.Parameters = make(map[string]string, len(r.ResultParameters.ResultParameter))
		for _, p := range r.ResultParameters.ResultParameter {
			result.Parameters[p.Key] = scalarString(p.Value)
		}
	}
	return result
}

// ParseTransactionResultJSON decodes and normalises raw result bytes.
func ParseTransactionResultJSON(data []byte) (TransactionResult, error) {
	var payload ResultPayload
	if err := decodeExact(data, &payload); err != nil {
		return TransactionResult{}, fmt.Errorf("decode result: %w", err)
	}
	return ParseTransactionResult(payload), nil
}

func decodeExact(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}

// scalarString renders a metadata value without float exponent notation.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
