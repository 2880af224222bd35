package authz

import (
	"context"
	"fmt"

	"github.com/huangang/taskforge/internal/models"
)

// MembershipKind tags how a user relates to a project.
type MembershipKind int

const (
	NotAMember MembershipKind = iota
	Owner
	Member
)

func (k MembershipKind) String() string {
	switch k {
	case Owner:
		return "owner"
	case Member:
		return "member"
	default:
		return "none"
	}
}

// Membership is the resolved relationship between a user and a project.
// Role is set only when Kind is Member.
type Membership struct {
	Kind MembershipKind
	Role Role
}

// IsMember reports whether the user has any relationship to the project.
func (m Membership) IsMember() bool {
	return m.Kind == Owner || (m.Kind == Member && m.Role != "")
}

// IsOwner reports whether the user owns the project.
func (m Membership) IsOwner() bool {
	return m.Kind == Owner
}

// EffectiveRole returns the role used for permission checks, or "" for
// non-members.
func (m Membership) EffectiveRole() Role {
	switch m.Kind {
	case Owner:
		return RoleOwner
	case Member:
		return m.Role
	default:
		return ""
	}
}

// Can reports whether the membership grants p. The owner passes without
// consulting the permission table.
func (m Membership) Can(p Permission) bool {
	if m.Kind == Owner {
		return true
	}
	if m.Kind != Member {
		return false
	}
	return CheckPermission(m.Role, p)
}

// Resolver derives memberships from current persisted state on every call.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads the project and the caller's relationship to it. A missing
// project yields an ErrNotFound error; a missing membership row is not an
// error.
func (r *Resolver) Resolve(ctx context.Context, username string, projectID uint) (Membership, *models.Project, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return Membership{}, nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		return Membership{}, nil, NotFound("project not found")
	}

	// Owner identity wins over any stray membership row.
	if username != "" && project.OwnerID == username {
		return Membership{Kind: Owner}, project, nil
	}

	member, err := r.store.GetMembership(ctx, projectID, username)
	if err != nil {
		return Membership{}, nil, fmt.Errorf("load membership of %q in project %d: %w", username, projectID, err)
	}
	if member == nil || member.Role == "" {
		return Membership{Kind: NotAMember}, project, nil
	}
	return Membership{Kind: Member, Role: normalizeStoredRole(member.Role)}, project, nil
}

// RoleOf returns the user's effective role in the project, or "" if the
// user is not a member.
func (r *Resolver) RoleOf(ctx context.Context, username string, projectID uint) (Role, error) {
	m, _, err := r.Resolve(ctx, username, projectID)
	if err != nil {
		return "", err
	}
	return m.EffectiveRole(), nil
}

// IsMember reports whether the user owns the project or holds any role in it.
func (r *Resolver) IsMember(ctx context.Context, username string, projectID uint) (bool, error) {
	m, _, err := r.Resolve(ctx, username, projectID)
	if err != nil {
		return false, err
	}
	return m.IsMember(), nil
}

// IsOwner checks only the project's owner_id.
func (r *Resolver) IsOwner(ctx context.Context, username string, projectID uint) (bool, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		return false, NotFound("project not found")
	}
	return username != "" && project.OwnerID == username, nil
}

// Stored roles are written through ParseRole, but rows edited by hand keep
// whatever casing they were given.
func normalizeStoredRole(s string) Role {
	if role, ok := ParseRole(s); ok {
		return role
	}
	return Role(s)
}
