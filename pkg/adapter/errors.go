package adapter

import "fmt"

// DatabaseError is a statement rejected by the database.
type DatabaseError struct {
	Code       string
	Message    string
	Detail     string
	Constraint string
	Err        error
}

func (e *DatabaseError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (SQLSTATE %s)", msg, e.Code)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return "database error: " + msg
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// UniqueViolation reports whether the statement broke a unique constraint,
// which is how failIfExists surfaces an existing row.
func (e *DatabaseError) UniqueViolation() bool {
	return e.Code == "23505"
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check output.database.url in rdm.json", e.Type, e.Available)
}
