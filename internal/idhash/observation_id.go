package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeObservationID computes a deterministic observation_id using SHA256.
// Formula: SHA256(source_url|sweep_id)
// Returns hex-encoded hash (64 characters). A retried sweep therefore
// produces the same ID, which the observation stores reject as a duplicate.
func ComputeObservationID(sourceURL, sweepID string) string {
	data := fmt.Sprintf("%s|%s", sourceURL, sweepID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
