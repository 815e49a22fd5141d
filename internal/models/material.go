package models

import "time"

// Material is learning content attached to a group. Materials can only
// be changed while the group is ONGOING.
type Material struct {
	ID          string    `db:"id" json:"id"`
	GroupID     string    `db:"group_id" json:"group_id"`
	Topic       string    `db:"topic" json:"topic"`
	Description string    `db:"description" json:"description"`
	Week        int       `db:"week" json:"week"`
	Link        string    `db:"link" json:"link"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
