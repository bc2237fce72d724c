package service

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Suffix alphabet excludes lookalike characters so support staff can read
// order numbers back over the phone.
const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newOrderNumber mints a date-coded, human-readable order number like
// ST-20240315-K7Q2MX. Not an identifier; the order ID is.
func newOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for anything else we do
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ST-%s-%s", now.Format("20060102"), buf)
}

// newReference mints the gateway correlation reference: namespaced,
// high-entropy, globally unique, immutable once assigned to an order.
func newReference() string {
	return "ST_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
