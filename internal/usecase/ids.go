package usecase

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newOrderNumber builds ids like ORD-20260118-K7Q2MX.
func newOrderNumber(now time.Time) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		copy(b, strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}
	return "ORD-" + now.UTC().Format("20060102") + "-" + string(b)
}
