package services

import (
	"context"
	"strings"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
)

// TeamService manages project memberships. Every mutation is reserved to
// the project owner.
type TeamService struct {
	store    store.Store
	resolver *authz.Resolver
}

func NewTeamService(st store.Store) *TeamService {
	return &TeamService{store: st, resolver: authz.NewResolver(st)}
}

type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role" binding:"required"` // manager, developer, viewer
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type TeamResponse struct {
	Owner   string                 `json:"owner"`
	Members []models.ProjectMember `json:"members"`
}

// List returns the owner and the explicit members. Stray rows for the owner
// are left out since they never take effect.
func (s *TeamService) List(ctx context.Context, username string, projectID uint) (*TeamResponse, error) {
	m, project, err := s.resolver.Resolve(ctx, username, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !m.Can(authz.PermViewProject) {
		return nil, authz.Forbidden("insufficient permission to view this project")
	}

	rows, err := s.store.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members := make([]models.ProjectMember, 0, len(rows))
	for _, row := range rows {
		if row.Username != project.OwnerID {
			members = append(members, row)
		}
	}
	return &TeamResponse{Owner: project.OwnerID, Members: members}, nil
}

func (s *TeamService) Add(ctx context.Context, actor string, projectID uint, req *AddMemberRequest) (*models.ProjectMember, error) {
	project, err := s.authorizeOwner(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	role, err := parseMemberRole(req.Role)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, authz.BadRequest("username is required")
	}
	if username == project.OwnerID {
		return nil, authz.BadRequest("the project owner cannot be added as a team member")
	}

	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, authz.NotFound("user not found")
	}
	return s.store.UpsertMembership(ctx, projectID, username, role)
}

func (s *TeamService) UpdateRole(ctx context.Context, actor string, projectID uint, username string, req *UpdateMemberRoleRequest) (*models.ProjectMember, error) {
	project, err := s.authorizeOwner(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	role, err := parseMemberRole(req.Role)
	if err != nil {
		return nil, err
	}
	if username == project.OwnerID {
		return nil, authz.BadRequest("the project owner's role cannot be changed")
	}

	member, err := s.store.GetMembership(ctx, projectID, username)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, authz.NotFound("member not found")
	}
	return s.store.UpsertMembership(ctx, projectID, username, role)
}

// Remove deletes the membership and unassigns the member's tasks in the
// project so that every assignee stays a member.
func (s *TeamService) Remove(ctx context.Context, actor string, projectID uint, username string) error {
	project, err := s.authorizeOwner(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if username == project.OwnerID {
		return authz.BadRequest("the project owner cannot be removed")
	}

	member, err := s.store.GetMembership(ctx, projectID, username)
	if err != nil {
		return err
	}
	if member == nil {
		return authz.NotFound("member not found")
	}
	if err := s.store.UnassignTasks(ctx, projectID, username); err != nil {
		return err
	}
	return s.store.DeleteMembership(ctx, member.ID)
}

func (s *TeamService) authorizeOwner(ctx context.Context, actor string, projectID uint) (*models.Project, error) {
	m, project, err := s.resolver.Resolve(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !authz.CanManageTeam(m) {
		return nil, authz.Forbidden("only the project owner can manage the team")
	}
	return project, nil
}

// parseMemberRole accepts the role names case-insensitively. owner is a
// valid role but is never granted through a membership row.
func parseMemberRole(s string) (authz.Role, error) {
	role, ok := authz.ParseRole(s)
	if !ok {
		return "", authz.BadRequest("invalid role")
	}
	if role == authz.RoleOwner {
		return "", authz.BadRequest("the owner role cannot be granted to a team member")
	}
	return role, nil
}
