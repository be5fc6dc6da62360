package store

import (
	"database/sql"

	"github.com/avtotest/chekbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanSession scans a Session from a single sql.Row.
func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var state string
	var pendingEmail sql.NullString
	err := row.Scan(&sess.UserID, &state, &pendingEmail, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.State = models.SessionState(state)
	sess.PendingEmail = pendingEmail.String
	return &sess, nil
}
