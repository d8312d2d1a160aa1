package user

import (
	"context"
	"testing"

	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	rootActor = permission.Actor{UserID: 1, Role: permission.RoleAdministrator, Rights: permission.NewSet(permission.All)}
	hrActor   = permission.Actor{UserID: 2, Role: permission.RoleGeneralSupervisor, Rights: permission.NewSet(permission.ManipulateUsers, permission.ReadAll)}
)

func newTestService(t *testing.T) (*Service, *MemStore) {
	store := NewMemStore()
	svc := NewService(store, nil, nil, logger.NewTestLogger(t))
	svc.cost = bcrypt.MinCost
	return svc, store
}

func registerDriver(t *testing.T, svc *Service) int64 {
	t.Helper()
	id, err := svc.Register(context.Background(), hrActor, &User{
		Login:     "jdoe",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      permission.RoleDriver,
	}, "s3cret-pass")
	require.NoError(t, err)
	return id
}

// ==========================
// Register
// ==========================

func TestService_Register_DefaultsRightsAndHashes(t *testing.T) {
	svc, store := newTestService(t)
	id := registerDriver(t, svc)

	stored, _ := store.GetByID(context.Background(), id)
	require.NotNil(t, stored)
	assert.True(t, stored.Rights.Equal(permission.DeriveDefaultAccessRight(permission.RoleDriver)))
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))
}

func TestService_Register_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    permission.Actor
		user     *User
		password string
		check    func(error) bool
	}{
		{name: "no manipulate users", actor: permission.Actor{UserID: 5, Rights: permission.NewSet(permission.ReadAll)}, user: &User{Login: "a", Role: permission.RoleDriver}, password: "long-enough", check: apperrors.IsUnauthorized},
		{name: "short password", actor: hrActor, user: &User{Login: "a", Role: permission.RoleDriver}, password: "short", check: apperrors.IsValidation},
		{name: "unknown role", actor: hrActor, user: &User{Login: "a", Role: "pilot"}, password: "long-enough", check: apperrors.IsValidation},
		{name: "blank login", actor: hrActor, user: &User{Login: " ", Role: permission.RoleDriver}, password: "long-enough", check: apperrors.IsValidation},
		{name: "custom rights need all", actor: hrActor, user: &User{Login: "a", Role: permission.RoleDriver, Rights: permission.NewSet(permission.ApproveApplications)}, password: "long-enough", check: apperrors.IsUnauthorized},
		{name: "administrator needs all", actor: hrActor, user: &User{Login: "a", Role: permission.RoleAdministrator}, password: "long-enough", check: apperrors.IsUnauthorized},
		{name: "hospital manager needs all", actor: hrActor, user: &User{Login: "a", Role: permission.RoleHospitalManager}, password: "long-enough", check: apperrors.IsUnauthorized},
		{name: "general supervisor needs all", actor: hrActor, user: &User{Login: "a", Role: permission.RoleGeneralSupervisor}, password: "long-enough", check: apperrors.IsUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.Register(context.Background(), tt.actor, tt.user, tt.password)
			assert.True(t, tt.check(err), "got %v", err)

			u, _ := store.GetByLogin(context.Background(), tt.user.Login)
			assert.Nil(t, u)
		})
	}
}

func TestService_Register_DuplicateLogin(t *testing.T) {
	svc, _ := newTestService(t)
	registerDriver(t, svc)

	_, err := svc.Register(context.Background(), hrActor, &User{Login: "JDOE", Role: permission.RoleDriver}, "another-pass")
	assert.True(t, apperrors.IsConflict(err))
}

func TestService_Register_AllMayGrantApproverRoles(t *testing.T) {
	svc, store := newTestService(t)

	id, err := svc.Register(context.Background(), rootActor, &User{Login: "manager", Role: permission.RoleHospitalManager}, "long-enough")
	require.NoError(t, err)

	stored, _ := store.GetByID(context.Background(), id)
	assert.True(t, stored.Rights.Has(permission.ApproveApplications))
}

func TestService_Register_AllMayGrantCustomRights(t *testing.T) {
	svc, store := newTestService(t)

	rights := permission.NewSet(permission.ManipulateMissions, permission.ApproveAsSupervisor)
	id, err := svc.Register(context.Background(), rootActor, &User{Login: "lead", Role: permission.RoleDriver, Rights: rights}, "long-enough")
	require.NoError(t, err)

	stored, _ := store.GetByID(context.Background(), id)
	assert.True(t, stored.Rights.Equal(rights))
}

// ==========================
// Escalation rule
// ==========================

func TestService_SetAccess_RequiresAll(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)
	before, _ := store.GetByID(ctx, id)

	nonRoot := []permission.Actor{
		hrActor,
		{UserID: 3, Rights: permission.NewSet(permission.ReadAll, permission.ApproveApplications, permission.ManipulateUsers, permission.ApproveAsManager)},
		{UserID: id, Role: permission.RoleDriver, Rights: before.Rights},
	}
	for _, actor := range nonRoot {
		err := svc.SetAccess(ctx, actor, id, permission.RoleAdministrator, permission.NewSet(permission.All))
		assert.True(t, apperrors.IsUnauthorized(err))

		err = svc.UpdateAny(ctx, actor, &User{ID: id, Role: permission.RoleHospitalManager, Rights: permission.NewSet(permission.ApproveApplications)})
		assert.True(t, apperrors.IsUnauthorized(err))
	}

	after, _ := store.GetByID(ctx, id)
	assert.Equal(t, before.Role, after.Role)
	assert.True(t, before.Rights.Equal(after.Rights))

	require.NoError(t, svc.SetAccess(ctx, rootActor, id, permission.RoleHospitalManager, permission.NewSet(permission.ApproveApplications)))
	changed, _ := store.GetByID(ctx, id)
	assert.Equal(t, permission.RoleHospitalManager, changed.Role)
	assert.True(t, changed.Rights.Equal(permission.NewSet(permission.ApproveApplications)))
}

func TestService_UpdateSelf_KeepsRoleAndRights(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)
	before, _ := store.GetByID(ctx, id)

	self := permission.Actor{UserID: id, Role: permission.RoleDriver, Rights: before.Rights}
	err := svc.UpdateSelf(ctx, self, &User{
		ID:           id,
		FirstName:    "Janet",
		LastName:     "Doe",
		Role:         permission.RoleAdministrator,
		Rights:       permission.NewSet(permission.All),
		PasswordHash: "forged",
	})
	require.NoError(t, err)

	after, _ := store.GetByID(ctx, id)
	assert.Equal(t, "Janet", after.FirstName)
	assert.Equal(t, permission.RoleDriver, after.Role)
	assert.True(t, after.Rights.Equal(before.Rights))
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	other := permission.Actor{UserID: id + 1, Rights: permission.NewSet(permission.ManipulateUsers)}
	assert.True(t, apperrors.IsUnauthorized(svc.UpdateSelf(ctx, other, &User{ID: id, FirstName: "X"})))
}

func TestService_UpdateAny_DerivesRightsOnRoleChange(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)

	require.NoError(t, svc.UpdateAny(ctx, rootActor, &User{ID: id, FirstName: "Jane", LastName: "Doe", Role: permission.RoleMechanic}))

	after, _ := store.GetByID(ctx, id)
	assert.Equal(t, permission.RoleMechanic, after.Role)
	assert.True(t, after.Rights.Equal(permission.DeriveDefaultAccessRight(permission.RoleMechanic)))

	assert.True(t, apperrors.IsNotFound(svc.UpdateAny(ctx, rootActor, &User{ID: 999, Role: permission.RoleDriver})))
}

// ==========================
// Credentials
// ==========================

func TestService_Authenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)

	u, err := svc.Authenticate(ctx, "jdoe", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = svc.Authenticate(ctx, "jdoe", "wrong-pass")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestService_ChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)
	self := permission.Actor{UserID: id}

	assert.True(t, apperrors.IsUnauthorized(svc.ChangePassword(ctx, self, "wrong-pass", "brand-new-pass")))
	require.NoError(t, svc.ChangePassword(ctx, self, "s3cret-pass", "brand-new-pass"))

	_, err := svc.Authenticate(ctx, "jdoe", "brand-new-pass")
	assert.NoError(t, err)
}

func TestService_Actor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := registerDriver(t, svc)

	actor, err := svc.Actor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleDriver, actor.Role)
	assert.True(t, actor.Can(permission.ManipulateMissions))

	_, err = svc.Actor(ctx, 404)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Actor(ctx, 0)
	assert.True(t, apperrors.IsValidation(err))
}

// ==========================
// Bootstrap
// ==========================

func TestService_EnsureAdministrator(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdministrator(ctx, "root", "root-pass-1")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := store.GetByLogin(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, permission.RoleAdministrator, admin.Role)
	assert.True(t, admin.Rights.IsAll())

	created, err = svc.EnsureAdministrator(ctx, "root", "another-pass")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.EnsureAdministrator(ctx, " ", "root-pass-1")
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.EnsureAdministrator(ctx, "ops", "short")
	assert.True(t, apperrors.IsValidation(err))
}
