package vault

import (
	"errors"
	"strings"
	"time"
)

const (
	KeyLen  = 32
	SaltLen = 16
	IVLen   = 16

	// scrypt cost parameters. Changing any of them makes existing stores unreadable.
	ScryptN = 1 << 14
	ScryptR = 8
	ScryptP = 1

	DefaultStoreFile = "passwords.json"
)

var (
	ErrNotFound = errors.New("vault: service not found or invalid master key")
	ErrDecrypt  = errors.New("vault: decryption failed")
	ErrCorrupt  = errors.New("vault: corrupt record")
)

// Record is one service entry as persisted in the store file.
type Record struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Salt      string `json:"salt"`
}

// Validate reports ErrCorrupt when a required field is missing.
func (r Record) Validate() error {
	var missing []string
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	if r.Salt == "" {
		missing = append(missing, "salt")
	}
	if r.CreatedAt == "" {
		missing = append(missing, "created_at")
	}
	if r.UpdatedAt == "" {
		missing = append(missing, "updated_at")
	}
	if len(missing) > 0 {
		return &fieldError{fields: missing}
	}
	return nil
}

type fieldError struct {
	fields []string
}

func (e *fieldError) Error() string {
	return ErrCorrupt.Error() + ": missing " + strings.Join(e.fields, ", ")
}

func (e *fieldError) Unwrap() error { return ErrCorrupt }

// Created parses CreatedAt.
func (r Record) Created() (time.Time, error) { return ParseTimestamp(r.CreatedAt) }

// Updated parses UpdatedAt.
func (r Record) Updated() (time.Time, error) { return ParseTimestamp(r.UpdatedAt) }

// Credential is the decrypted content of a record.
type Credential struct {
	Username string
	Password string
	// PasswordOK is false when the username decrypted but the password did not.
	PasswordOK bool
}

type AddResult int

const (
	AddCreated AddResult = iota
	AddUpdated
	AddUnchanged
	AddRejected
)

func (r AddResult) String() string {
	switch r {
	case AddCreated:
		return "created"
	case AddUpdated:
		return "updated"
	case AddUnchanged:
		return "unchanged"
	case AddRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const timestampLayout = time.RFC3339Nano

var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders t in UTC as RFC 3339 with nanoseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts RFC 3339 and the offset-less ISO-8601 form older stores
// were written with; the latter is read as local time.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if lt, lerr := time.ParseInLocation(layout, s, time.Local); lerr == nil {
			return lt, nil
		}
	}
	return time.Time{}, err
}
