package razorpay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// echo -n "O1|P1" | openssl dgst -sha256 -hmac "s"
	sig := Sign("s", "O1", "P1")
	assert.Equal(t, "d21cc795bcee40ad1b3d574510d482a0ea6938974fcdcbbdc720aec1a62a9468", sig)
	assert.NotEqual(t, sig, Sign("s", "P1", "O1"))
	assert.NotEqual(t, sig, Sign("t", "O1", "P1"))
}

func TestVerifySignature(t *testing.T) {
	good := Sign("secret", "order_1", "pay_1")

	assert.True(t, VerifySignature("secret", "order_1", "pay_1", good))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", good))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", good))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}

func TestClient_VerifySignatureWithoutSecret(t *testing.T) {
	c := NewClient(Config{KeyID: "rzp_test"})
	assert.False(t, c.VerifySignature("order_1", "pay_1", Sign("", "order_1", "pay_1")))
}

func TestClient_CanceledContext(t *testing.T) {
	c := NewClient(Config{KeyID: "rzp_test", KeySecret: "secret"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateOrder(ctx, 100, "INR", "recpt_1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinor(t *testing.T) {
	assert.Equal(t, int64(49900), minor(float64(49900)))
	assert.Equal(t, int64(7), minor(7))
	assert.Equal(t, int64(0), minor("x"))
}
