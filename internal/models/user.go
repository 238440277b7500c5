package models

// User represents a row in the users table.
type User struct {
	ID       int64
	Username string
	Password string // bcrypt hash, never rendered
	IsAdmin  bool   // reserved, no handler consults it yet
}
