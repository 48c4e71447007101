package models

import "time"

// Resolution is a caller decision for a conflict that could not be merged
// automatically.
type Resolution string

const (
	ResolutionKeepLocal  Resolution = "keep-local"
	ResolutionKeepRemote Resolution = "keep-remote"
	ResolutionMerge      Resolution = "merge"
)

// ConflictRecord describes two incompatible pending changes to the same
// entity. It stays unresolved until the caller picks one of Options.
type ConflictRecord struct {
	ID         string         `json:"id" db:"id"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	Local      map[string]any `json:"local" db:"local"`
	Remote     map[string]any `json:"remote" db:"remote"`
	Options    []Resolution   `json:"options" db:"options"`
	DetectedAt time.Time      `json:"detected_at" db:"detected_at"`
	Resolved   bool           `json:"resolved" db:"resolved"`
	Resolution Resolution     `json:"resolution,omitempty" db:"resolution"`
}

// ConflictBackup preserves both sides of a conflict before either is
// discarded, keyed by entity identifier. Retrievable after resolution.
type ConflictBackup struct {
	EntityID   string         `json:"entity_id" db:"entity_id"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	Local      map[string]any `json:"local" db:"local"`
	Remote     map[string]any `json:"remote" db:"remote"`
	SavedAt    time.Time      `json:"saved_at" db:"saved_at"`
}

// DefaultConflictOptions is the option set offered for every surfaced
// conflict.
func DefaultConflictOptions() []Resolution {
	return []Resolution{ResolutionKeepLocal, ResolutionKeepRemote, ResolutionMerge}
}
