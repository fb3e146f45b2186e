// Package school holds the value types stored in the school system's tables.
package school

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Relationship of a guardian to a student.
type Relationship string

const (
	Mother        Relationship = "mother"
	Father        Relationship = "father"
	LegalGuardian Relationship = "legal_guardian"
	Other         Relationship = "other"
)

// StudentStatus mirrors the CHECK constraint on students.status.
type StudentStatus string

const (
	StudentActive      StudentStatus = "active"
	StudentTransferred StudentStatus = "transferred"
	StudentWaiting     StudentStatus = "waiting"
)

// Valid reports whether s is accepted by the students table.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentTransferred, StudentWaiting:
		return true
	}
	return false
}

// TransferStatus mirrors the CHECK constraint on transfers.status.
type TransferStatus string

const (
	TransferPending  TransferStatus = "pending"
	TransferApproved TransferStatus = "approved"
	TransferRejected TransferStatus = "rejected"
)

// Valid reports whether s is accepted by the transfers table.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferApproved, TransferRejected:
		return true
	}
	return false
}

// Role mirrors the CHECK constraint on users.role.
type Role string

const (
	RoleSecretary Role = "secretary"
	RoleDirector  Role = "director"
	RoleTeacher   Role = "teacher"
)

// Valid reports whether r is accepted by the users table.
func (r Role) Valid() bool {
	switch r {
	case RoleSecretary, RoleDirector, RoleTeacher:
		return true
	}
	return false
}

// Guardian is a person responsible for a student.
type Guardian struct {
	Name         string       `json:"name" validate:"required,max=100"`
	Relationship Relationship `json:"relationship" validate:"required,oneof=mother father legal_guardian other"`
	Phone        string       `json:"phone" validate:"required,min=8,max=20"`
	Email        string       `json:"email,omitempty" validate:"omitempty,email"`
}

// Guardians is stored as a JSON array in students.guardians.
type Guardians []Guardian

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalized returns a trimmed copy and leaves g untouched.
func (g Guardians) normalized() Guardians {
	out := make(Guardians, len(g))
	for i, gd := range g {
		gd.Name = strings.TrimSpace(gd.Name)
		gd.Phone = strings.TrimSpace(gd.Phone)
		gd.Email = strings.TrimSpace(gd.Email)
		out[i] = gd
	}
	return out
}

// Validate checks every guardian; a student needs at least one.
func (g Guardians) Validate() error {
	return g.normalized().validate()
}

func (g Guardians) validate() error {
	if len(g) == 0 {
		return errors.New("at least one guardian is required")
	}
	var errs []error
	for i := range g {
		if err := validate.Struct(g[i]); err != nil {
			errs = append(errs, fmt.Errorf("guardian %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Value validates the guardians and encodes the trimmed records as JSON.
func (g Guardians) Value() (driver.Value, error) {
	n := g.normalized()
	if err := n.validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal([]Guardian(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes guardians from a JSON column.
func (g *Guardians) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*g = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Guardians", src)
	}
	var out []Guardian
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("decode guardians: %w", err)
	}
	*g = out
	return nil
}
