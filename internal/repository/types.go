package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

type Progress struct {
	Source    string
	Position  time.Duration
	UpdatedAt time.Time
}

type ResolvedURL struct {
	Source     string
	URL        string
	ResolvedAt time.Time
}
