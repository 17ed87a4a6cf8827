package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Razorpayのコールバック署名。HMAC-SHA256(secret, order_id|payment_id) の16進
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(gatewayOrderID, paymentID, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, v.mac(gatewayOrderID, paymentID))
}

// テストや手動確認用
func (v *HMACVerifier) Sign(gatewayOrderID, paymentID string) string {
	return hex.EncodeToString(v.mac(gatewayOrderID, paymentID))
}

func (v *HMACVerifier) mac(gatewayOrderID, paymentID string) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(gatewayOrderID + "|" + paymentID))
	return m.Sum(nil)
}
