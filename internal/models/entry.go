package models

import "time"

type Entry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Path             string    `json:"path"`
	IsDirectory      bool      `json:"is_directory"`
	Visible          bool      `json:"visible"`
	Owner            *string   `json:"owner,omitempty"`
	GroupAffiliation *string   `json:"group_affiliation,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ModifiedAt       time.Time `json:"modified_at"`
}
