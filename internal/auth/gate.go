// Package auth derives what a signed-in user may see and owns the
// session-scoped user binding.
package auth

import (
	"slices"

	"github.com/sadopc/timesheet/internal/model"
)

// Capability is a navigation area of the application.
type Capability string

const (
	TimeTracking Capability = "time_tracking"
	Projects     Capability = "projects"
	Analytics    Capability = "analytics"
	Management   Capability = "management"
)

// Capabilities returns the ordered navigation set for role. Unknown roles
// get the base set.
func Capabilities(role model.Role) []Capability {
	caps := []Capability{TimeTracking, Projects}
	if role.AtLeast(model.RoleSupervisor) {
		caps = append(caps, Analytics)
	}
	if role.AtLeast(model.RoleManager) {
		caps = append(caps, Management)
	}
	return caps
}

func Has(role model.Role, c Capability) bool {
	return slices.Contains(Capabilities(role), c)
}
