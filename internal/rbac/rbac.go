package rbac

import "backlog/api/internal/store"

type Role string
type Action string

const (
	RoleUser  Role = store.RoleUser
	RoleAdmin Role = store.RoleAdmin
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// Can reports whether role may perform action. Managing members, projects
// and workflow configuration is reserved for admins.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// CanAccessProject reports whether member may open project. Admins see every
// project; other members only those that list them.
func CanAccessProject(member store.Member, project store.Project) bool {
	if Normalize(member.Role) == RoleAdmin {
		return true
	}
	return project.HasMember(member.ID)
}
