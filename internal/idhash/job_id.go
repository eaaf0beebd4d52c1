// Package idhash derives deterministic identifiers for collection jobs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeJobID derives a stable hex identifier from the job's request
// parameters and creation time. Address casing does not change the ID.
func ComputeJobID(address string, startMs, endMs, createdMs int64) string {
	payload := fmt.Sprintf("%s|%d|%d|%d", strings.ToLower(address), startMs, endMs, createdMs)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
