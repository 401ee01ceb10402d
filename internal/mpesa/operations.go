package mpesa

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	identifierShortCode = "4"
	taxAuthorityPaybill = "572572"
)

func wholeAmount(field string, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, validationError(field, "amount must be positive, got %s", amount)
	}
	rounded := amount.Round(0)
	if rounded.IsZero() {
		return 0, validationError(field, "amount must be at least 1, got %s", amount)
	}
	return rounded.IntPart(), nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return validationError(field, "%s is required", field)
	}
	return nil
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func (c *Client) resultURLs(u ResultURLs) (string, string) {
	return or(u.ResultURL, c.cfg.CallbackURL), or(u.QueueTimeOutURL, c.cfg.CallbackURL)
}

// STKPush sends a payment prompt to the customer's phone.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if err := required("accountReference", req.AccountReference); err != nil {
		return nil, err
	}

	timestamp, password := c.signature()
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   or(req.TransactionType, "CustomerPayBillOnline"),
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       or(req.CallbackURL, c.cfg.CallbackURL),
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   or(req.TransactionDesc, req.AccountReference),
	}

	var resp STKPushResponse
	if err := c.dispatcher.Send(ctx, PathSTKPush, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// STKQuery asks for the state of a push identified by checkoutRequestID.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	if err := required("checkoutRequestId", checkoutRequestID); err != nil {
		return nil, err
	}

	timestamp, password := c.signature()
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var resp STKQueryResponse
	if err := c.dispatcher.Send(ctx, PathSTKQuery, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountBalance requests the short code's balance; the figures arrive on ResultURL.
func (c *Client) AccountBalance(ctx context.Context, req AccountBalanceRequest) (*AsyncResponse, error) {
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": credential,
		"CommandID":          "AccountBalance",
		"PartyA":             c.cfg.ShortCode,
		"IdentifierType":     or(req.IdentifierType, identifierShortCode),
		"Remarks":            or(req.Remarks, "Account balance"),
		"QueueTimeOutURL":    timeoutURL,
		"ResultURL":          resultURL,
	}
	return c.sendAsync(ctx, PathAccountBalance, body)
}

// TransactionStatus looks up a completed transaction by its receipt.
func (c *Client) TransactionStatus(ctx context.Context, req TransactionStatusRequest) (*AsyncResponse, error) {
	if err := required("transactionId", req.TransactionID); err != nil {
		return nil, err
	}
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": credential,
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      req.TransactionID,
		"PartyA":             c.cfg.ShortCode,
		"IdentifierType":     or(req.IdentifierType, identifierShortCode),
		"Remarks":            or(req.Remarks, "Transaction status"),
		"Occasion":           req.Occasion,
		"QueueTimeOutURL":    timeoutURL,
		"ResultURL":          resultURL,
	}
	return c.sendAsync(ctx, PathTransactionStatus, body)
}

// Reversal reverses a transaction received on the short code.
func (c *Client) Reversal(ctx context.Context, req ReversalRequest) (*AsyncResponse, error) {
	if err := required("transactionId", req.TransactionID); err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"Initiator":              c.cfg.InitiatorName,
		"SecurityCredential":     credential,
		"CommandID":              "TransactionReversal",
		"TransactionID":          req.TransactionID,
		"Amount":                 amount,
		"ReceiverParty":          c.cfg.ShortCode,
		"RecieverIdentifierType": "11",
		"Remarks":                or(req.Remarks, "Reversal"),
		"Occasion":               req.Occasion,
		"QueueTimeOutURL":        timeoutURL,
		"ResultURL":              resultURL,
	}
	return c.sendAsync(ctx, PathReversal, body)
}

// B2C pays a customer from the business short code.
func (c *Client) B2C(ctx context.Context, req B2CRequest) (*AsyncResponse, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"OriginatorConversationID": uuid.NewString(),
		"InitiatorName":            c.cfg.InitiatorName,
		"SecurityCredential":       credential,
		"CommandID":                or(req.CommandID, "BusinessPayment"),
		"Amount":                   amount,
		"PartyA":                   c.cfg.ShortCode,
		"PartyB":                   phone,
		"Remarks":                  or(req.Remarks, "Business payment"),
		"QueueTimeOutURL":          timeoutURL,
		"ResultURL":                resultURL,
		"Occasion":                 req.Occasion,
	}
	return c.sendAsync(ctx, PathB2C, body)
}

// B2B pays another business short code.
func (c *Client) B2B(ctx context.Context, req B2BRequest) (*AsyncResponse, error) {
	if err := required("receiverShortCode", req.ReceiverShortCode); err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"Initiator":              c.cfg.InitiatorName,
		"SecurityCredential":     credential,
		"CommandID":              or(req.CommandID, "BusinessPayBill"),
		"SenderIdentifierType":   identifierShortCode,
		"RecieverIdentifierType": identifierShortCode,
		"Amount":                 amount,
		"PartyA":                 c.cfg.ShortCode,
		"PartyB":                 req.ReceiverShortCode,
		"AccountReference":       req.AccountReference,
		"Remarks":                or(req.Remarks, "Business payment"),
		"QueueTimeOutURL":        timeoutURL,
		"ResultURL":              resultURL,
	}
	if req.Requester != "" {
		requester, err := NormalizePhone(req.Requester)
		if err != nil {
			return nil, err
		}
		body["Requester"] = requester
	}
	return c.sendAsync(ctx, PathB2B, body)
}

// GenerateQR creates a dynamic payment QR code.
func (c *Client) GenerateQR(ctx context.Context, req QRCodeRequest) (*QRCodeResponse, error) {
	if err := required("merchantName", req.MerchantName); err != nil {
		return nil, err
	}
	if err := required("cpi", req.CPI); err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"MerchantName": req.MerchantName,
		"RefNo":        req.RefNo,
		"Amount":       amount,
		"TrxCode":      or(req.TrxCode, "BG"),
		"CPI":          req.CPI,
		"Size":         or(req.Size, "300"),
	}

	var resp QRCodeResponse
	if err := c.dispatcher.Send(ctx, PathQRCode, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemitTax pays a tax payment registration number from the short code.
func (c *Client) RemitTax(ctx context.Context, req RemitTaxRequest) (*AsyncResponse, error) {
	if err := required("accountReference", req.AccountReference); err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	credential, err := c.securityCredential()
	if err != nil {
		return nil, err
	}
	resultURL, timeoutURL := c.resultURLs(req.ResultURLs)
	body := map[string]any{
		"Initiator":              c.cfg.InitiatorName,
		"SecurityCredential":     credential,
		"CommandID":              "PayTaxToKRA",
		"SenderIdentifierType":   identifierShortCode,
		"RecieverIdentifierType": identifierShortCode,
		"Amount":                 amount,
		"PartyA":                 c.cfg.ShortCode,
		"PartyB":                 taxAuthorityPaybill,
		"AccountReference":       req.AccountReference,
		"Remarks":                or(req.Remarks, "Tax remittance"),
		"QueueTimeOutURL":        timeoutURL,
		"ResultURL":              resultURL,
	}
	return c.sendAsync(ctx, PathRemitTax, body)
}

// RegisterC2BURLs registers where customer-initiated payments are confirmed.
func (c *Client) RegisterC2BURLs(ctx context.Context, req C2BRegisterRequest) (*GatewayResponse, error) {
	if err := required("confirmationUrl", req.ConfirmationURL); err != nil {
		return nil, err
	}
	if err := required("validationUrl", req.ValidationURL); err != nil {
		return nil, err
	}
	body := map[string]any{
		"ShortCode":       c.cfg.ShortCode,
		"ResponseType":    or(req.ResponseType, "Completed"),
		"ConfirmationURL": req.ConfirmationURL,
		"ValidationURL":   req.ValidationURL,
	}

	var resp GatewayResponse
	if err := c.dispatcher.Send(ctx, PathC2BRegister, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimulateC2B fakes a customer payment. The gateway only offers it in sandbox.
func (c *Client) SimulateC2B(ctx context.Context, req C2BSimulateRequest) (*GatewayResponse, error) {
	if c.cfg.Environment != Sandbox {
		return nil, validationError(KeyEnvironment, "C2B simulation is only available in sandbox")
	}
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	amount, err := wholeAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"ShortCode":     c.cfg.ShortCode,
		"CommandID":     or(req.CommandID, "CustomerPayBillOnline"),
		"Amount":        amount,
		"Msisdn":        phone,
		"BillRefNumber": req.BillRefNumber,
	}

	var resp GatewayResponse
	if err := c.dispatcher.Send(ctx, PathC2BSimulate, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) sendAsync(ctx context.Context, path string, body map[string]any) (*AsyncResponse, error) {
	var resp AsyncResponse
	if err := c.dispatcher.Send(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
