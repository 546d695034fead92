// Package stableid computes the content-derived stable identity of an
// occurrence record. Two records represent the same real-world occurrence iff
// their stable identities are equal, which is what lets successive full
// imports agree on what they replaced.
package stableid

import (
	"crypto/sha1" //nolint:gosec // identity fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
)

// Compute returns the 40 hex character stable identity for an occurrence.
// The identity depends only on the raw occurrence id and the source dataset
// key: renaming a dataset does not move identities, rekeying it does.
// The input format must never change, it is persisted in every database.
func Compute(occurrenceID, datasetKey string) string {
	s := fmt.Sprintf("occ_id: %s d_id: %s", occurrenceID, datasetKey)
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
