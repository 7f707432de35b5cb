package helper

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// MidtransSignature computes the notification checksum the gateway sends:
// sha512(order_id + status_code + gross_amount + server_key), hex encoded.
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifyMidtransSignature checks an inbound notification signature in
// constant time.
func VerifyMidtransSignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	expected := MidtransSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// GenerateBodySign signs an outbound notification body with HMAC-SHA256 so
// the receiving collaborator can authenticate us.
func GenerateBodySign(bodyJson string, appSecret string) (string, error) {
	h := hmac.New(sha256.New, []byte(appSecret))
	h.Write([]byte(bodyJson))
	signature := h.Sum(nil)

	base64Encoded := base64.StdEncoding.EncodeToString(signature)
	bodysign := strings.NewReplacer("+", "-", "/", "_").Replace(base64Encoded)

	return bodysign, nil
}
