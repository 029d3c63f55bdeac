package domain

import "time"

// Blog is a bookmarked blog entry owned by the user who created it.
//
// CreatorID references the owning User by id only. It never changes after
// creation and Likes never drops below zero.
type Blog struct {
	ID        string
	Title     string
	Author    string
	URL       string
	Likes     int64
	CreatorID string
	CreatedAt time.Time
}
