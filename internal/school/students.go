package school

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schoolsys/internal/database"
)

// Student is a row of the students table as submitted for enrollment.
type Student struct {
	FullName     string        `json:"full_name" validate:"required,max=100"`
	BirthDate    time.Time     `json:"birth_date" validate:"required"`
	Guardians    Guardians     `json:"guardians" validate:"-"`
	Address      string        `json:"address" validate:"required"`
	SchoolID     int64         `json:"school_id" validate:"required,gt=0"`
	Class        string        `json:"class" validate:"required,max=50"`
	AcademicYear string        `json:"academic_year" validate:"required,max=9"`
	Status       StudentStatus `json:"status,omitempty"`
}

// Validate checks the student and its guardians. An empty status means
// active.
func (s Student) Validate() error {
	s.FullName = strings.TrimSpace(s.FullName)
	s.Address = strings.TrimSpace(s.Address)
	s.Class = strings.TrimSpace(s.Class)
	s.AcademicYear = strings.TrimSpace(s.AcademicYear)

	var errs []error
	if err := validate.Struct(s); err != nil {
		errs = append(errs, err)
	}
	if s.Status != "" && !s.Status.Valid() {
		errs = append(errs, fmt.Errorf("invalid student status %q", s.Status))
	}
	if err := s.Guardians.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// InsertStudent validates s and inserts it, returning the new id. Nothing
// reaches the database when validation fails.
func InsertStudent(ctx context.Context, q database.Querier, d database.Dialect, s Student) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, fmt.Errorf("invalid student: %w", err)
	}
	status := s.Status
	if status == "" {
		status = StudentActive
	}

	ph := make([]string, 8)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO students (full_name, birth_date, guardians, address, school_id, class, academic_year, status)
VALUES (%s) RETURNING id`, strings.Join(ph, ", "))

	rows, err := q.QueryContext(ctx, query,
		strings.TrimSpace(s.FullName),
		s.BirthDate.Format(time.DateOnly),
		s.Guardians,
		strings.TrimSpace(s.Address),
		s.SchoolID,
		strings.TrimSpace(s.Class),
		strings.TrimSpace(s.AcademicYear),
		string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("insert student: %w", err)
		}
		return 0, errors.New("insert student: no id returned")
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return id, rows.Err()
}
