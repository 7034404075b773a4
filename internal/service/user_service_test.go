package service

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techtwins/user-api/internal/apperr"
	"github.com/techtwins/user-api/internal/models"
)

// fakeStore is an in-memory UserStore enforcing the same uniqueness rule as
// the real table's unique index.
type fakeStore struct {
	nextID  int64
	users   map[int64]models.User
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, users: make(map[int64]models.User)}
}

func (f *fakeStore) Create(user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperr.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) GetByID(id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (f *fakeStore) GetByEmail(email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeStore) List(page, perPage int) ([]models.User, int, error) {
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	offset := (page - 1) * perPage
	users := []models.User{}
	for i := offset; i < len(ids) && i < offset+perPage; i++ {
		users = append(users, f.users[ids[i]])
	}
	return users, len(ids), nil
}

func (f *fakeStore) Update(user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return apperr.ErrNotFound
	}
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return apperr.ErrConflict
		}
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) Delete(id int64) error {
	if _, ok := f.users[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) Ping() error { return f.pingErr }

func intPtr(v int) *int { return &v }

func createTestUser(t *testing.T, svc *UserService, name, email string, age *int) *models.User {
	t.Helper()
	user, err := svc.CreateUser(models.CreateUserRequest{Name: name, Email: email, Age: age})
	require.NoError(t, err)
	return user
}

func TestCreateUser_AssignsIDAndTimestamps(t *testing.T) {
	svc := NewUserService(newFakeStore())

	user := createTestUser(t, svc, "Ana", "ana@x.com", intPtr(30))

	assert.NotZero(t, user.ID)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "ana@x.com", user.Email)
	require.NotNil(t, user.Age)
	assert.Equal(t, 30, *user.Age)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	assert.Equal(t, time.UTC, user.CreatedAt.Location())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc := NewUserService(store)

	createTestUser(t, svc, "Ana", "ana@x.com", nil)

	_, err := svc.CreateUser(models.CreateUserRequest{Name: "Impostor", Email: "ana@x.com"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, store.users, 1)
}

func TestCreateUser_StoreConflictWinsOverPreCheck(t *testing.T) {
	// Simulates losing the race: the pre-check passes but the store's unique
	// index rejects the insert.
	store := newFakeStore()
	svc := NewUserService(&racingStore{fakeStore: store})

	_, err := svc.CreateUser(models.CreateUserRequest{Name: "Ana", Email: "ana@x.com"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

type racingStore struct {
	*fakeStore
}

func (r *racingStore) GetByEmail(string) (*models.User, error) {
	return nil, apperr.ErrNotFound
}

func (r *racingStore) Create(user *models.User) error {
	return apperr.ErrConflict
}

func TestUpdateUser_PartialAgeOnly(t *testing.T) {
	store := newFakeStore()
	svc := NewUserService(store)

	user := createTestUser(t, svc, "Ana", "ana@x.com", intPtr(30))

	// Age the stored record so the refreshed timestamp is observable.
	stored := store.users[user.ID]
	stored.UpdatedAt = stored.UpdatedAt.Add(-time.Minute)
	store.users[user.ID] = stored
	prior := stored.UpdatedAt

	updated, err := svc.UpdateUser(user.ID, models.UpdateUserRequest{Age: intPtr(31)})
	require.NoError(t, err)

	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "ana@x.com", updated.Email)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 31, *updated.Age)
	assert.True(t, updated.UpdatedAt.After(prior), "updated_at must advance past %v", prior)
	assert.Equal(t, user.CreatedAt, updated.CreatedAt)
}

func TestUpdateUser_EmailConflictLeavesRecordUnchanged(t *testing.T) {
	store := newFakeStore()
	svc := NewUserService(store)

	createTestUser(t, svc, "Ana", "ana@x.com", nil)
	bo := createTestUser(t, svc, "Bo", "bo@x.com", intPtr(40))

	_, err := svc.UpdateUser(bo.ID, models.UpdateUserRequest{Email: strPtr("ana@x.com")})
	require.ErrorIs(t, err, apperr.ErrConflict)

	unchanged, err := svc.GetUser(bo.ID)
	require.NoError(t, err)
	assert.Equal(t, "bo@x.com", unchanged.Email)
	assert.Equal(t, "Bo", unchanged.Name)
}

func TestUpdateUser_OwnEmailIsNotAConflict(t *testing.T) {
	svc := NewUserService(newFakeStore())

	user := createTestUser(t, svc, "Ana", "ana@x.com", nil)

	updated, err := svc.UpdateUser(user.ID, models.UpdateUserRequest{
		Name:  strPtr("Ana Maria"),
		Email: strPtr("ana@x.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
}

func TestUpdateUser_NotFound(t *testing.T) {
	svc := NewUserService(newFakeStore())

	_, err := svc.UpdateUser(999, models.UpdateUserRequest{Age: intPtr(31)})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteUser_TwiceReturnsNotFound(t *testing.T) {
	svc := NewUserService(newFakeStore())

	user := createTestUser(t, svc, "Ana", "ana@x.com", nil)

	require.NoError(t, svc.DeleteUser(user.ID))

	_, err := svc.GetUser(user.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.ErrorIs(t, svc.DeleteUser(user.ID), apperr.ErrNotFound)
}

func TestDeleteUser_RemovedFromList(t *testing.T) {
	svc := NewUserService(newFakeStore())

	ana := createTestUser(t, svc, "Ana", "ana@x.com", nil)
	createTestUser(t, svc, "Bo", "bo@x.com", nil)

	require.NoError(t, svc.DeleteUser(ana.ID))

	users, pagination, err := svc.ListUsers(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Total)
	for _, u := range users {
		assert.NotEqual(t, ana.ID, u.ID)
	}
}

func TestListUsers_Pagination(t *testing.T) {
	svc := NewUserService(newFakeStore())

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}
	for _, email := range emails {
		createTestUser(t, svc, "User", email, nil)
	}

	tests := []struct {
		name          string
		page, perPage int
		expectedLen   int
		expectedPage  int
	}{
		{name: "first page", page: 1, perPage: 2, expectedLen: 2, expectedPage: 1},
		{name: "last partial page", page: 3, perPage: 2, expectedLen: 1, expectedPage: 3},
		{name: "out-of-range page is empty", page: 4, perPage: 2, expectedLen: 0, expectedPage: 4},
		{name: "defaults applied", page: 0, perPage: 0, expectedLen: 5, expectedPage: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, pagination, err := svc.ListUsers(tt.page, tt.perPage)
			require.NoError(t, err)
			assert.Len(t, users, tt.expectedLen)
			assert.Equal(t, tt.expectedPage, pagination.Page)
			assert.Equal(t, 5, pagination.Total)
			if tt.perPage == 2 {
				assert.Equal(t, 3, pagination.Pages)
			}
		})
	}
}

func TestListUsers_StableOrder(t *testing.T) {
	svc := NewUserService(newFakeStore())

	first := createTestUser(t, svc, "Ana", "ana@x.com", nil)
	second := createTestUser(t, svc, "Bo", "bo@x.com", nil)

	users, _, err := svc.ListUsers(1, 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, second.ID, users[1].ID)
}

func TestHealthCheck(t *testing.T) {
	store := newFakeStore()
	svc := NewUserService(store)
	assert.Equal(t, "connected", svc.HealthCheck())

	store.pingErr = errors.New("store unreachable")
	assert.True(t, strings.HasPrefix(svc.HealthCheck(), "error:"))
}

func strPtr(s string) *string { return &s }
