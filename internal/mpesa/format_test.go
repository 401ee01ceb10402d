package mpesa

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneCanonicalForms(t *testing.T) {
	inputs := []string{
		"0712345678",
		"+254712345678",
		"254712345678",
		"712345678",
		"0712 345 678",
		"+254-712-345-678",
		"(0712) 345678",
		" 254 712 345 678 ",
	}

	for _, in := range inputs {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		require.Equal(t, "254712345678", got, in)
	}
}

func TestNormalizePhoneRejectsWrongLength(t *testing.T) {
	for _, in := range []string{"071234", "", "07123456789", "abc", "+2547123456789"} {
		_, err := NormalizePhone(in)
		require.Error(t, err, in)
		require.True(t, IsKind(err, KindValidation), in)

		e, _ := AsError(err)
		require.Equal(t, "phoneNumber", e.Field)
		require.Contains(t, e.Message, in)
	}
}

func TestNormalizePhoneReportsDigitCount(t *testing.T) {
	_, err := NormalizePhone("071234")
	require.Error(t, err)
	require.Contains(t, err.Error(), "got 8 digits")
}

func TestTimestamp(t *testing.T) {
	require.Equal(t, "20260225143045", Timestamp(time.Date(2026, 2, 25, 14, 30, 45, 0, time.Local)))
	require.Equal(t, "20260102030405", Timestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)))
}

func TestTimestampUsesLocalClock(t *testing.T) {
	now := time.Date(2026, 2, 25, 14, 30, 45, 0, time.UTC)
	require.Equal(t, now.Local().Format("20060102150405"), Timestamp(now))
}

func TestPassword(t *testing.T) {
	got := Password("174379", "bfb279f9", "20260225143045")
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379bfb279f920260225143045")), got)

	decoded, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	require.Equal(t, "174379bfb279f920260225143045", string(decoded))
}

func TestParseGatewayDate(t *testing.T) {
	got, err := ParseGatewayDate(int64(20260225120000))
	require.NoError(t, err)
	require.Equal(t, 2026, got.Year())
	require.Equal(t, time.February, got.Month())
	require.Equal(t, 25, got.Day())
	require.Equal(t, 12, got.Hour())
	require.Equal(t, 0, got.Minute())
	require.Equal(t, 0, got.Second())
	require.Equal(t, time.Local, got.Location())

	got, err = ParseGatewayDate("20261231235959")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 12, 31, 23, 59, 59, 0, time.Local), got)
}

func TestParseGatewayDateAcceptsNumberForms(t *testing.T) {
	want := time.Date(2026, 2, 25, 12, 0, 0, 0, time.Local)
	for _, v := range []any{20260225120000, float64(20260225120000), "20260225120000"} {
		got, err := ParseGatewayDate(v)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseGatewayDateRejectsBadInput(t *testing.T) {
	for _, v := range []any{"2026022512", "2026022512000X", true, nil} {
		_, err := ParseGatewayDate(v)
		require.Error(t, err)
		require.True(t, IsKind(err, KindValidation))
	}
}
