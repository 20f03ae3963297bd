package service

import (
	"fmt"

	"family-tasks/internal/model"
)

// Inbound free-text visibility values accepted from the mini app.
const (
	visibilityInputCommon  = "common"
	visibilityInputPrivate = "private"
)

// ResolveVisibility converts the free-text visibility of an inbound
// request into a stored variant, using the acting member's role. The
// resolution happens once, at write time: a "private" task created by
// the husband stays husband-visible even if roles are later
// reassigned to other members.
func ResolveVisibility(raw string, role model.Role) (model.Visibility, error) {
	switch raw {
	case visibilityInputCommon, "":
		return model.VisibilityCommon, nil
	case visibilityInputPrivate:
		switch role {
		case model.RoleHusband:
			return model.VisibilityHusband, nil
		case model.RoleWife:
			return model.VisibilityWife, nil
		default:
			return "", fmt.Errorf("%w: member has no role to resolve private visibility", ErrValidation)
		}
	default:
		return "", fmt.Errorf("%w: unknown visibility %q", ErrValidation, raw)
	}
}

// CanView reports whether a member holding the given role may see the
// task. A member whose family has no partner yet resolves the same
// way: only common tasks and their own role's private tasks.
func CanView(role model.Role, task *model.Task) bool {
	switch task.Visibility {
	case model.VisibilityCommon:
		return true
	case model.VisibilityHusband:
		return role == model.RoleHusband
	case model.VisibilityWife:
		return role == model.RoleWife
	default:
		return false
	}
}

// ListVisible filters tasks down to those the role may see, keeping
// the input order (the store returns them newest first).
func ListVisible(role model.Role, tasks []model.Task) []model.Task {
	visible := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if CanView(role, &task) {
			visible = append(visible, task)
		}
	}
	return visible
}
