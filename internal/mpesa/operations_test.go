package mpesa

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func stubEncrypter(password, certificate []byte) (string, error) {
	return "enc(" + string(password) + ")", nil
}

func initiatorOverrides() map[string]string {
	return map[string]string{
		KeyInitiatorName:     "testapi",
		KeyInitiatorPassword: "Safaricom999!*!",
	}
}

func TestSTKPushSignsRequest(t *testing.T) {
	gw := newFakeGateway(t)
	var path string
	gw.business = func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"MerchantRequestID":"m1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0"}`))
	}
	now := time.Date(2026, 2, 25, 14, 30, 45, 0, time.Local)
	client := New(testConfig(t, gw.server.URL, nil), WithClock(func() time.Time { return now }))

	resp, err := client.STKPush(context.Background(), STKPushRequest{
		PhoneNumber:      "0712 345 678",
		Amount:           decimal.NewFromFloat(99.6),
		AccountReference: "INV-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	require.Equal(t, PathSTKPush, path)

	body := gw.lastBody()
	require.Equal(t, "20260225143045", body["Timestamp"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379bfb279f920260225143045")), body["Password"])
	require.Equal(t, "254712345678", body["PhoneNumber"])
	require.Equal(t, "254712345678", body["PartyA"])
	require.Equal(t, "174379", body["PartyB"])
	require.EqualValues(t, 100, body["Amount"])
	require.Equal(t, "https://example.com/callback", body["CallBackURL"])
	require.Equal(t, "CustomerPayBillOnline", body["TransactionType"])
}

func TestSTKPushValidatesBeforeSending(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, nil))

	_, err := client.STKPush(context.Background(), STKPushRequest{PhoneNumber: "071234", Amount: decimal.NewFromInt(1), AccountReference: "x"})
	require.True(t, IsKind(err, KindValidation))

	_, err = client.STKPush(context.Background(), STKPushRequest{PhoneNumber: "0712345678", Amount: decimal.Zero, AccountReference: "x"})
	require.True(t, IsKind(err, KindValidation))

	require.Equal(t, 0, gw.businessCalls())
	require.EqualValues(t, 0, gw.authCalls.Load())
}

func TestSTKQueryPending(t *testing.T) {
	gw := newFakeGateway(t)
	gw.business = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"requestId":"1","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`))
	}
	client := New(testConfig(t, gw.server.URL, map[string]string{KeyMaxRetries: "1"}))

	_, err := client.STKQuery(context.Background(), "ws_CO_1")
	e, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeTransactionInProgress, e.Code)
	require.Equal(t, "ws_CO_1", gw.lastBody()["CheckoutRequestID"])
}

func TestSTKQueryDecodesStringResultCode(t *testing.T) {
	gw := newFakeGateway(t)
	gw.business = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
	}
	client := New(testConfig(t, gw.server.URL, nil))

	resp, err := client.STKQuery(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	require.Equal(t, "1032", resp.ResultCode.String())
}

func TestB2CEncryptsCredentialAndTagsConversation(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, initiatorOverrides()), WithEncrypter(stubEncrypter), WithCertificate([]byte("cert")))

	_, err := client.B2C(context.Background(), B2CRequest{PhoneNumber: "+254 712 345 678", Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	body := gw.lastBody()
	require.Equal(t, "enc(Safaricom999!*!)", body["SecurityCredential"])
	require.Equal(t, "testapi", body["InitiatorName"])
	require.Equal(t, "254712345678", body["PartyB"])
	require.Equal(t, "BusinessPayment", body["CommandID"])
	require.Equal(t, "https://example.com/callback", body["ResultURL"])

	_, err = uuid.Parse(body["OriginatorConversationID"].(string))
	require.NoError(t, err)
}

func TestInitiatorOperationsRequireCredentials(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, nil), WithEncrypter(stubEncrypter))
	ctx := context.Background()

	_, err := client.AccountBalance(ctx, AccountBalanceRequest{})
	require.True(t, IsKind(err, KindValidation))
	_, err = client.Reversal(ctx, ReversalRequest{TransactionID: "T1", Amount: decimal.NewFromInt(1)})
	require.True(t, IsKind(err, KindValidation))
	_, err = client.RemitTax(ctx, RemitTaxRequest{AccountReference: "PRN1", Amount: decimal.NewFromInt(1)})
	require.True(t, IsKind(err, KindValidation))

	require.Equal(t, 0, gw.businessCalls())
}

func TestInitiatorOperationBodies(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, initiatorOverrides()), WithEncrypter(stubEncrypter), WithCertificate([]byte("cert")))
	ctx := context.Background()

	_, err := client.AccountBalance(ctx, AccountBalanceRequest{ResultURLs: ResultURLs{ResultURL: "https://example.com/balance"}})
	require.NoError(t, err)
	require.Equal(t, "AccountBalance", gw.lastBody()["CommandID"])
	require.Equal(t, "https://example.com/balance", gw.lastBody()["ResultURL"])
	require.Equal(t, "https://example.com/callback", gw.lastBody()["QueueTimeOutURL"])

	_, err = client.TransactionStatus(ctx, TransactionStatusRequest{TransactionID: "NLJ41HAY6Q"})
	require.NoError(t, err)
	require.Equal(t, "TransactionStatusQuery", gw.lastBody()["CommandID"])

	_, err = client.Reversal(ctx, ReversalRequest{TransactionID: "NLJ41HAY6Q", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Equal(t, "TransactionReversal", gw.lastBody()["CommandID"])
	require.Equal(t, "11", gw.lastBody()["RecieverIdentifierType"])

	_, err = client.B2B(ctx, B2BRequest{ReceiverShortCode: "600000", Amount: decimal.NewFromInt(10), AccountReference: "acc", Requester: "0712345678"})
	require.NoError(t, err)
	require.Equal(t, "BusinessPayBill", gw.lastBody()["CommandID"])
	require.Equal(t, "254712345678", gw.lastBody()["Requester"])

	_, err = client.RemitTax(ctx, RemitTaxRequest{AccountReference: "PRN1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Equal(t, "PayTaxToKRA", gw.lastBody()["CommandID"])
	require.Equal(t, "572572", gw.lastBody()["PartyB"])
}

func TestGenerateQRAndC2B(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, nil))
	ctx := context.Background()

	_, err := client.GenerateQR(ctx, QRCodeRequest{MerchantName: "Shop", CPI: "373132", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, "BG", gw.lastBody()["TrxCode"])
	require.Equal(t, "300", gw.lastBody()["Size"])

	_, err = client.RegisterC2BURLs(ctx, C2BRegisterRequest{ConfirmationURL: "https://example.com/c", ValidationURL: "https://example.com/v"})
	require.NoError(t, err)
	require.Equal(t, "Completed", gw.lastBody()["ResponseType"])

	_, err = client.SimulateC2B(ctx, C2BSimulateRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1), BillRefNumber: "ref"})
	require.NoError(t, err)
	require.Equal(t, "254712345678", gw.lastBody()["Msisdn"])
}

func TestSimulateC2BDisallowedInProduction(t *testing.T) {
	gw := newFakeGateway(t)
	client := New(testConfig(t, gw.server.URL, map[string]string{KeyEnvironment: "production"}))

	_, err := client.SimulateC2B(context.Background(), C2BSimulateRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1)})
	e, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, KindValidation, e.Kind)
	require.Equal(t, KeyEnvironment, e.Field)
	require.Equal(t, 0, gw.businessCalls())
}

func TestNewClientBuildsFromValues(t *testing.T) {
	_, err := NewClient(map[string]string{})
	require.True(t, IsKind(err, KindValidation))

	client, err := NewClient(validValues())
	require.NoError(t, err)
	require.Equal(t, "174379", client.Config().ShortCode)
}
