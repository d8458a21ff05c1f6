// Package model holds the record types shared by the client and the backend.
package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire and storage format of calendar dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the format of same-day wall-clock times.
	ClockLayout = "15:04"
)

// Role gates navigation only. Ordered user < supervisor < manager.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
	RoleManager    Role = "manager"
)

var roleRank = map[Role]int{
	RoleUser:       0,
	RoleSupervisor: 1,
	RoleManager:    2,
}

// ParseRole rejects anything outside the three known roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	a, ok := roleRank[r]
	if !ok {
		return false
	}
	return a >= roleRank[other]
}

type User struct {
	ID          string    `json:"id" yaml:"id"`
	Email       string    `json:"email" yaml:"email"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Role        Role      `json:"role" yaml:"role"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// AuthorizedEmail is an allow-list entry. A user can only sign in if one
// exists for their email.
type AuthorizedEmail struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Role      Role      `json:"role" yaml:"role"`
	CreatedBy string    `json:"created_by" yaml:"created_by"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Client      string    `json:"client" yaml:"client"`
	Description string    `json:"description" yaml:"description"`
	StartDate   string    `json:"start_date" yaml:"start_date"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

type Task struct {
	ID          string            `json:"id" yaml:"id"`
	ProjectID   string            `json:"project_id" yaml:"project_id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
}

// TimeEntry is a block of hours logged by a user. Project and Task are only
// populated on reads that join them.
type TimeEntry struct {
	ID          string    `json:"id" yaml:"id"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	ProjectID   string    `json:"project_id" yaml:"project_id"`
	TaskID      *string   `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Date        string    `json:"date" yaml:"date"`
	StartTime   string    `json:"start_time" yaml:"start_time"`
	EndTime     string    `json:"end_time" yaml:"end_time"`
	Hours       float64   `json:"hours" yaml:"hours"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`

	Project *Project `json:"project,omitempty" yaml:"project,omitempty"`
	Task    *Task    `json:"task,omitempty" yaml:"task,omitempty"`
}

// ProjectName returns the joined project's name, or "Unknown".
func (e TimeEntry) ProjectName() string {
	if e.Project != nil {
		return e.Project.Name
	}
	return "Unknown"
}

func (e TimeEntry) TaskName() string {
	if e.Task != nil {
		return e.Task.Name
	}
	return ""
}

// EntryFilter narrows ListTimeEntries. From and To are inclusive dates.
type EntryFilter struct {
	UserID string
	From   string
	To     string
}

type TaskFilter struct {
	ProjectID string
}

// Session is a signed-in identity issued by the identity provider. ID doubles
// as the bearer token.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NormalizeEmail lowercases and trims an address so lookups are exact.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Duration returns end-start in fractional hours, both given as HH:MM on
// the same day. A non-positive result is returned as is.
func Duration(start, end string) (float64, error) {
	s, err := time.Parse(ClockLayout, start)
	if err != nil {
		return 0, fmt.Errorf("parse start time %q: %w", start, err)
	}
	e, err := time.Parse(ClockLayout, end)
	if err != nil {
		return 0, fmt.Errorf("parse end time %q: %w", end, err)
	}
	return e.Sub(s).Hours(), nil
}
