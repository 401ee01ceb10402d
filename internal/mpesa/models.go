package mpesa

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Gateway operation paths.
const (
	PathSTKPush           = "/mpesa/stkpush/v1/processrequest"
	PathSTKQuery          = "/mpesa/stkpushquery/v1/query"
	PathAccountBalance    = "/mpesa/accountbalance/v1/query"
	PathTransactionStatus = "/mpesa/transactionstatus/v1/query"
	PathReversal          = "/mpesa/reversal/v1/request"
	PathB2C               = "/mpesa/b2c/v3/paymentrequest"
	PathB2B               = "/mpesa/b2b/v1/paymentrequest"
	PathQRCode            = "/mpesa/qrcode/v1/generate"
	PathRemitTax          = "/mpesa/b2b/v1/remittax"
	PathC2BRegister       = "/mpesa/c2b/v1/registerurl"
	PathC2BSimulate       = "/mpesa/c2b/v1/simulate"
)

// CodeTransactionInProgress is returned by STK query while the customer has
// not yet answered the prompt.
const CodeTransactionInProgress = "500.001.1001"

// STKPushRequest asks the gateway to prompt a customer's phone.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
	// TransactionType defaults to CustomerPayBillOnline.
	TransactionType string
	// CallbackURL defaults to Config.CallbackURL.
	CallbackURL string
}

// STKPushResponse is the synchronous acknowledgement of a push request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse reports the state of an earlier push.
type STKQueryResponse struct {
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResultCode          json.Number `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

// AsyncResponse acknowledges an initiator operation whose outcome arrives
// later on ResultURL.
type AsyncResponse struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ConversationID           string `json:"ConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// ResultURLs routes asynchronous results; both default to Config.CallbackURL.
type ResultURLs struct {
	ResultURL       string
	QueueTimeOutURL string
}

type AccountBalanceRequest struct {
	IdentifierType string
	Remarks        string
	ResultURLs
}

type TransactionStatusRequest struct {
	TransactionID  string
	IdentifierType string
	Remarks        string
	Occasion       string
	ResultURLs
}

type ReversalRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Remarks       string
	Occasion      string
	ResultURLs
}

// B2CRequest pays a customer from the business short code.
type B2CRequest struct {
	PhoneNumber string
	Amount      decimal.Decimal
	// CommandID is one of BusinessPayment, SalaryPayment, PromotionPayment.
	CommandID string
	Remarks   string
	Occasion  string
	ResultURLs
}

// B2BRequest pays another business short code.
type B2BRequest struct {
	ReceiverShortCode string
	Amount            decimal.Decimal
	AccountReference  string
	CommandID         string
	Requester         string
	Remarks           string
	ResultURLs
}

// QRCodeRequest generates a dynamic payment QR code.
type QRCodeRequest struct {
	MerchantName string
	RefNo        string
	Amount       decimal.Decimal
	// TrxCode is BG, WA, PB, SM or SB.
	TrxCode string
	// CPI is the credit party identifier (till, paybill, phone).
	CPI  string
	Size string
}

type QRCodeResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	RequestID           string `json:"RequestID"`
	ResponseDescription string `json:"ResponseDescription"`
	QRCode              string `json:"QRCode"`
}

// RemitTaxRequest pays a tax authority payment registration number.
type RemitTaxRequest struct {
	Amount           decimal.Decimal
	AccountReference string
	Remarks          string
	ResultURLs
}

// C2BRegisterRequest registers the confirmation and validation URLs.
type C2BRegisterRequest struct {
	// ResponseType is Completed or Cancelled.
	ResponseType    string
	ConfirmationURL string
	ValidationURL   string
}

// C2BSimulateRequest simulates a customer payment (sandbox only).
type C2BSimulateRequest struct {
	PhoneNumber   string
	Amount        decimal.Decimal
	BillRefNumber string
	CommandID     string
}

// GatewayResponse is the plain acknowledgement shape of C2B endpoints.
type GatewayResponse struct {
	OriginatorConversationID string `json:"OriginatorCoversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}
