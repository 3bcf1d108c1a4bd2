package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

const DefaultLanguage = "en"

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// notFoundOnFK turns a foreign key violation into ErrNotFound: a referenced
// guild, user, video or request does not exist.
func notFoundOnFK(err error) error {
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return ErrNotFound
	}
	return err
}
