package user

import (
	"context"
	"fmt"
	"strings"

	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/permission"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Invalidator drops cached copies of a user after a write. Implemented by CachedDirectory.
type Invalidator interface {
	Invalidate(ctx context.Context, id int64) error
}

// Service applies the user-facing rules: who may register users, who may change roles and
// rights, and how credentials are checked.
type Service struct {
	store     Store
	directory Directory
	cache     Invalidator
	logger    logger.Logger
	cost      int
}

// NewService builds the service. directory serves reads (typically a CachedDirectory over
// store); cache may be nil.
func NewService(store Store, directory Directory, cache Invalidator, log logger.Logger) *Service {
	if directory == nil {
		directory = store
	}
	return &Service{
		store:     store,
		directory: directory,
		cache:     cache,
		logger:    log.WithFields(map[string]interface{}{"component": "user-service"}),
		cost:      bcrypt.DefaultCost,
	}
}

// Register creates a user. Rights default to the role's; only an actor holding All may
// grant anything else, or register a role whose defaults include an approval capability.
func (s *Service) Register(ctx context.Context, actor permission.Actor, u *User, password string) (int64, error) {
	if !actor.Can(permission.ManipulateUsers) {
		return 0, apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not register users", actor.UserID))
	}
	if u == nil {
		return 0, apperrors.NewValidationError("user is required")
	}
	if u.ID != 0 {
		return 0, apperrors.NewValidationError("new user must not carry an id")
	}
	if strings.TrimSpace(u.Login) == "" {
		return 0, apperrors.NewValidationError("login is required")
	}
	if len(password) < minPasswordLength {
		return 0, apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !u.Role.Valid() {
		return 0, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", u.Role))
	}

	defaults := permission.DeriveDefaultAccessRight(u.Role)
	custom := !u.Rights.Equal(permission.None) && !u.Rights.Equal(defaults)
	if (custom || grantsApproval(defaults)) && !actor.Rights.IsAll() {
		return 0, apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not grant %s", actor.UserID, u.Role))
	}

	row := u.Clone()
	if !custom {
		row.Rights = defaults
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("password rejected: %v", err))
	}
	row.PasswordHash = string(hash)

	id, err := s.store.Create(ctx, row)
	if err != nil {
		return 0, err
	}

	s.logger.Info("user registered", map[string]interface{}{
		"userId":  id,
		"role":    string(row.Role),
		"actorId": actor.UserID,
	})
	return id, nil
}

// approvalCaps are the capabilities that let a user decide applications or set approval flags.
var approvalCaps = []permission.Capability{
	permission.ApproveApplications,
	permission.ApproveAsSupervisor,
	permission.ApproveAsManager,
}

func grantsApproval(rights permission.Set) bool {
	if rights.IsAll() {
		return true
	}
	for _, c := range approvalCaps {
		if rights.Has(c) {
			return true
		}
	}
	return false
}

// UpdateSelf changes the actor's own profile. Role, rights, login and password hash are
// kept from storage whatever the caller supplied.
func (s *Service) UpdateSelf(ctx context.Context, actor permission.Actor, u *User) error {
	if u == nil {
		return apperrors.NewValidationError("user is required")
	}
	if u.ID != actor.UserID {
		return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may only update their own profile", actor.UserID))
	}

	existing, err := s.load(ctx, u.ID)
	if err != nil {
		return err
	}
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	return s.save(ctx, existing)
}

// UpdateAny changes any user's profile, role and rights. Requires All.
func (s *Service) UpdateAny(ctx context.Context, actor permission.Actor, u *User) error {
	if !actor.Rights.IsAll() {
		return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not update other users", actor.UserID))
	}
	if u == nil {
		return apperrors.NewValidationError("user is required")
	}
	if !u.Role.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown role %q", u.Role))
	}

	existing, err := s.load(ctx, u.ID)
	if err != nil {
		return err
	}
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	if existing.Role != u.Role && u.Rights.Equal(permission.None) {
		existing.Rights = permission.DeriveDefaultAccessRight(u.Role)
	} else {
		existing.Rights = u.Rights
	}
	existing.Role = u.Role
	return s.save(ctx, existing)
}

// SetAccess replaces a user's role and rights. Requires All; without it nothing is written.
func (s *Service) SetAccess(ctx context.Context, actor permission.Actor, targetID int64, role permission.Role, rights permission.Set) error {
	if !actor.Rights.IsAll() {
		return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not change access rights", actor.UserID))
	}
	if !role.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}

	existing, err := s.load(ctx, targetID)
	if err != nil {
		return err
	}
	existing.Role = role
	existing.Rights = rights
	if err := s.save(ctx, existing); err != nil {
		return err
	}

	s.logger.Info("access rights changed", map[string]interface{}{
		"userId":  targetID,
		"role":    string(role),
		"rights":  rights.String(),
		"actorId": actor.UserID,
	})
	return nil
}

// ChangePassword replaces the actor's own password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, actor permission.Actor, current, next string) error {
	if len(next) < minPasswordLength {
		return apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	existing, err := s.load(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(current)) != nil {
		return apperrors.NewAuthorizationError("current password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("password rejected: %v", err))
	}
	existing.PasswordHash = string(hash)
	return s.save(ctx, existing)
}

// Authenticate verifies a login and password and returns the user.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	u, err := s.store.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.NewAuthorizationError("invalid credentials")
	}
	return u, nil
}

// EnsureAdministrator creates an administrator with login unless a user already holds it.
// It reports whether a user was created.
func (s *Service) EnsureAdministrator(ctx context.Context, login, password string) (bool, error) {
	if strings.TrimSpace(login) == "" {
		return false, apperrors.NewValidationError("login is required")
	}
	existing, err := s.store.GetByLogin(ctx, login)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	root := permission.Actor{Rights: permission.DeriveDefaultAccessRight(permission.RoleAdministrator)}
	id, err := s.Register(ctx, root, &User{Login: login, Role: permission.RoleAdministrator}, password)
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap administrator created", map[string]interface{}{"userId": id, "login": login})
	return true, nil
}

// Actor resolves the permission view of a user.
func (s *Service) Actor(ctx context.Context, id int64) (permission.Actor, error) {
	if id <= 0 {
		return permission.Actor{}, apperrors.NewValidationError(fmt.Sprintf("user id must be positive, got %d", id))
	}
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		return permission.Actor{}, err
	}
	if u == nil {
		return permission.Actor{}, apperrors.NewNotFoundError("user", id)
	}
	return u.Actor(), nil
}

// load reads from the store, never the cache, so writes start from the stored row.
func (s *Service) load(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("user id must be positive, got %d", id))
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	return u, nil
}

func (s *Service) save(ctx context.Context, u *User) error {
	ok, err := s.store.Update(ctx, u)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("user", u.ID)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, u.ID); err != nil {
			s.logger.Warn("user cache invalidation failed", map[string]interface{}{"userId": u.ID, "error": err.Error()})
		}
	}
	return nil
}
