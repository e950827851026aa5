// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import googleuuid "github.com/google/uuid"

// New returns a UUIDv7 string. Version 7 ids sort by creation time, which
// keeps B-tree inserts append-mostly.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	return googleuuid.Validate(s) == nil
}
