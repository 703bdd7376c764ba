package models

import (
	"errors"
	"time"
)

// ErrNotFound covers both a missing record and one hidden from readers.
var ErrNotFound = errors.New("not found")

const (
	MaxSlugLength = 64
	displayRunes  = 30
)

type Author struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a Author) FullName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	case a.LastName != "":
		return a.LastName
	}
	return a.Username
}

type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l Location) String() string { return Truncate(l.Name, displayRunes) }

type Category struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Category) String() string { return Truncate(c.Title, displayRunes) }

type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	PubDate     time.Time `json:"pub_date"`
	Author      Author    `json:"author"`
	Location    *Location `json:"location,omitempty"`
	Category    *Category `json:"category,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Post) String() string { return Truncate(p.Title, displayRunes) }

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
