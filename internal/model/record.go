package model

import (
	"encoding/json"
	"time"
)

// Record is one item of a list-shaped collection. The payload is opaque to
// the sync layer; only the id is interpreted.
type Record struct {
	ID  string
	Raw json.RawMessage
}

// ParseRecord extracts the mandatory id field from a raw record. The second
// return value is false when the payload is not an object or carries no
// string id.
func ParseRecord(raw json.RawMessage) (Record, bool) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == "" {
		return Record{}, false
	}
	return Record{ID: probe.ID, Raw: raw}, true
}

// BackupVersion tags the export document format. The importer accepts this
// shape back.
const BackupVersion = "3.0"

// Backup is the downloadable export document: every mirrored collection plus
// an export timestamp and a format-version tag.
type Backup struct {
	Collections map[string]json.RawMessage `json:"collections"`
	ExportDate  time.Time                  `json:"exportDate"`
	Version     string                     `json:"version"`
}
