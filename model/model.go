package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// ComputeChecksum generates a SHA-256 hash over the canonical field subset of a
// registration: identity fields plus the payment binding. Volatile fields such
// as timestamps and payment status are deliberately excluded, so the checksum
// stays stable across legitimate status updates.
func (registration *Registration) ComputeChecksum() string {
	data := fmt.Sprintf("%s%s%s%s%d%s",
		registration.FirstName,
		registration.LastName,
		registration.Email,
		registration.EventSlug,
		registration.AmountCents,
		registration.PaymentReference,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// HashClientSecret hashes a client-facing payment secret for tamper detection.
// Only the hash is ever persisted; the secret itself never touches the store.
func HashClientSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}
