// Package storage holds what cycle record stores and blob stores share.
// Implementations live in the memory, postgres, local and gcs subpackages.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a cycle record does not exist.
var ErrNotFound = errors.New("cycle not found")

// ContentTypeJSON is the content type archived cycle results are written with.
const ContentTypeJSON = "application/json"

// ArchivePath builds the object key for a cycle result:
// prefix/YYYY/MM/DD/<id>.json. Keys sort by day, and UUIDv7 IDs sort
// within a day.
func ArchivePath(prefix, cycleID string, at time.Time) (string, error) {
	if strings.TrimSpace(cycleID) == "" {
		return "", fmt.Errorf("cycle id is required")
	}
	if strings.ContainsAny(cycleID, `/\`) || strings.Contains(cycleID, "..") {
		return "", fmt.Errorf("invalid cycle id %q", cycleID)
	}
	at = at.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		cycleID+".json",
	), nil
}
