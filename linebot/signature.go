package linebot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Line-Signature"

var (
	// ErrSignatureMissing means the signature header was absent or empty.
	ErrSignatureMissing = errors.New("linebot: missing signature")
	// ErrSignatureInvalid means the signature did not match the body.
	ErrSignatureInvalid = errors.New("linebot: invalid signature")
)

// Sign returns the signature LINE would send for body. Used to replay
// deliveries against a local server.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw request body.
func VerifySignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return ErrSignatureMissing
	}
	if !webhook.ValidateSignature(secret, signature, body) {
		return ErrSignatureInvalid
	}
	return nil
}
