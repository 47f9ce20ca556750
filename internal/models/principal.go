package models

import "time"

type Principal struct {
	ID               int64     `json:"id" db:"id"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	Email            string    `json:"email" db:"email"`
	AvatarURL        *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	GroupAffiliation *string   `json:"group_affiliation,omitempty" db:"group_affiliation"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
