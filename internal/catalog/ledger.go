package catalog

import "time"

// LedgerLevel grades a ledger line.
type LedgerLevel string

const (
	LedgerInfo  LedgerLevel = "info"
	LedgerWarn  LedgerLevel = "warn"
	LedgerError LedgerLevel = "error"
)

// LedgerEntry is one line of the append-only run ledger. Entries record
// skips, degradations, and failures without aborting the run.
type LedgerEntry struct {
	RunID   string         `json:"runId,omitempty"`
	Stage   string         `json:"stage"`
	ItemID  string         `json:"itemId"`
	When    time.Time      `json:"when"`
	Level   LedgerLevel    `json:"level"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// NewLedgerEntry stamps an entry with the current time.
func NewLedgerEntry(stage, itemID string, level LedgerLevel, message string, details map[string]any) LedgerEntry {
	return LedgerEntry{
		Stage:   stage,
		ItemID:  itemID,
		When:    time.Now().UTC(),
		Level:   level,
		Message: message,
		Details: details,
	}
}
