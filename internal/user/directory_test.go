package user

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/permission"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "login", "password_hash", "first_name", "last_name", "role", "access_right"}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// ==========================
// Cached Directory Tests
// ==========================

func TestCachedDirectory_MissThenHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr, rdb := setupMiniredis(t)
	dir := NewCachedDirectory(NewPostgresStore(db), rdb, 5*time.Minute, logger.NewTestLogger(t))

	supervisorMask := permission.Encode(permission.DeriveDefaultAccessRight(permission.RoleGeneralSupervisor))
	mock.ExpectQuery(`SELECT id, login, password_hash, first_name, last_name, role, access_right FROM users WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(2, "gsup", "$2a$04$hash", "Grace", "Sup", "general_supervisor", supervisorMask))

	u, err := dir.GetByID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, permission.RoleGeneralSupervisor, u.Role)

	cached, err := mr.Get("user:2")
	require.NoError(t, err)
	assert.NotContains(t, cached, "$2a$04$hash")
	assert.True(t, mr.TTL("user:2") > 0)

	again, err := dir.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "gsup", again.Login)
	assert.True(t, again.Rights.Equal(u.Rights))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDirectory_AbsentUserIsNotCached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr, rdb := setupMiniredis(t)
	dir := NewCachedDirectory(NewPostgresStore(db), rdb, time.Minute, logger.NewTestLogger(t))

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	u, err := dir.GetByID(context.Background(), 9)
	assert.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, mr.Exists("user:9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDirectory_AllMaskSurvivesCache(t *testing.T) {
	_, rdb := setupMiniredis(t)
	store := NewMemStore()
	id, err := store.Create(context.Background(), &User{Login: "root", Role: permission.RoleAdministrator, Rights: permission.NewSet(permission.All)})
	require.NoError(t, err)

	dir := NewCachedDirectory(store, rdb, time.Minute, logger.NewTestLogger(t))
	_, err = dir.GetByID(context.Background(), id)
	require.NoError(t, err)

	cached, err := dir.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, cached.Rights.IsAll())
}

func TestCachedDirectory_CacheErrorFallsBackToStore(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	store := NewMemStore()
	id, _ := store.Create(context.Background(), &User{Login: "drv", Role: permission.RoleDriver, Rights: permission.DeriveDefaultAccessRight(permission.RoleDriver)})

	rmock.ExpectGet("user:1").SetErr(errors.New("connection refused"))
	data, _ := json.Marshal(cachedUser{ID: id, Login: "drv", Role: "driver", AccessRight: permission.Encode(permission.DeriveDefaultAccessRight(permission.RoleDriver))})
	rmock.ExpectSet("user:1", data, time.Minute).SetErr(errors.New("connection refused"))

	dir := NewCachedDirectory(store, rdb, time.Minute, logger.NewTestLogger(t))
	u, err := dir.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "drv", u.Login)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCachedDirectory_Invalidate(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	store := NewMemStore()
	svc := NewService(store, nil, nil, logger.NewTestLogger(t))
	dir := NewCachedDirectory(store, rdb, time.Minute, logger.NewTestLogger(t))
	svc.directory, svc.cache = dir, dir

	id, err := store.Create(context.Background(), &User{Login: "m", Role: permission.RoleMechanic, Rights: permission.DeriveDefaultAccessRight(permission.RoleMechanic)})
	require.NoError(t, err)

	_, err = svc.Actor(context.Background(), id)
	require.NoError(t, err)
	require.True(t, mr.Exists("user:1"))

	require.NoError(t, svc.SetAccess(context.Background(), rootActor, id, permission.RoleTransportSupervisor, permission.DeriveDefaultAccessRight(permission.RoleTransportSupervisor)))
	assert.False(t, mr.Exists("user:1"))

	actor, err := svc.Actor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleTransportSupervisor, actor.Role)
}

// ==========================
// Postgres Store Tests
// ==========================

func TestPostgresStore_CreateDuplicateLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("jdoe", "hash", "Jane", "Doe", "driver", permission.Encode(permission.NewSet(permission.ManipulateMissions))).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err = NewPostgresStore(db).Create(context.Background(), &User{
		Login: "jdoe", PasswordHash: "hash", FirstName: "Jane", LastName: "Doe",
		Role: permission.RoleDriver, Rights: permission.NewSet(permission.ManipulateMissions),
	})
	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateWritesMask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE users`).
		WithArgs("hash", "Jane", "Doe", "administrator", int64(-1), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewPostgresStore(db).Update(context.Background(), &User{
		ID: 4, PasswordHash: "hash", FirstName: "Jane", LastName: "Doe",
		Role: permission.RoleAdministrator, Rights: permission.NewSet(permission.All),
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
