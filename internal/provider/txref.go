package provider

import (
	"crypto/rand"
	"encoding/hex"
)

const maxTxRefLen = 50

// randomSuffix returns a short hex token used to make tx_refs unique.
func randomSuffix() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed marker rather than panicking mid-request.
		return "00000000"
	}
	return hex.EncodeToString(b[:])
}

func clampTxRef(ref string) string {
	if len(ref) <= maxTxRefLen {
		return ref
	}
	return ref[:maxTxRefLen]
}

// NewTopupTxRef builds the tx_ref for a coin top-up purchase (spec.md §4.3:
// "tx_ref generation coin-{user}-{random}").
func NewTopupTxRef(userRef string) string {
	return clampTxRef("coin-" + userRef + "-" + randomSuffix())
}

// NewSubscriptionTxRef builds the tx_ref for a subscription purchase
// (spec.md §4.3: "sub-{plan}-{random}"), distinguishing subscription
// settlements from coin top-ups in the webhook handler via the "sub-" prefix.
func NewSubscriptionTxRef(plan string) string {
	return clampTxRef("sub-" + plan + "-" + randomSuffix())
}

// IsSubscriptionTxRef reports whether a tx_ref belongs to a subscription
// purchase rather than a coin top-up.
func IsSubscriptionTxRef(txRef string) bool {
	return len(txRef) >= 4 && txRef[:4] == "sub-"
}
