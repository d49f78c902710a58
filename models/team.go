package models

import "time"

// RosterSize is the fixed number of players per team.
const RosterSize = 2

// TeamStatus tracks the registration workflow. Public signups land as
// pending and only join the tournament once an admin approves them.
type TeamStatus string

const (
	TeamStatusPending  TeamStatus = "pending"
	TeamStatusApproved TeamStatus = "approved"
)

type Team struct {
	ID        int        `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Players   []string   `json:"players" db:"players"`
	Paid      bool       `json:"paid" db:"paid"`
	Status    TeamStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}
