package domain

// Participant is one live member of a room as reported to clients in a
// presence-update. Purely derived from the session set, never persisted.
type Participant struct {
	UserID uint   `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
