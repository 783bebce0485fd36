package core

import "time"

// ChangeEvent describes one persisted mutation of a user's ledger.
type ChangeEvent struct {
	UserID string    `json:"user_id"`
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	RowID  string    `json:"row_id"`
	At     time.Time `json:"at"`
}

// NewChangeEvent stamps an event with the current UTC time.
func NewChangeEvent(userID, table, op, rowID string) ChangeEvent {
	return ChangeEvent{
		UserID: userID,
		Table:  table,
		Op:     op,
		RowID:  rowID,
		At:     time.Now().UTC(),
	}
}
