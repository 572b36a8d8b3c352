package models

// Roles
const (
	RoleParent        = "parent"
	RoleLawyer        = "lawyer"
	RoleJudge         = "judge"
	RoleAdministrator = "administrator"
)

// Document statuses
const (
	StatusPending   = "pending"
	StatusValidated = "validated"
	StatusRejected  = "rejected"
)

// Indexation modes
const (
	ModePercentage = "percentage"
	ModeIndex      = "index"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleParent, RoleLawyer, RoleJudge, RoleAdministrator:
		return true
	}
	return false
}
