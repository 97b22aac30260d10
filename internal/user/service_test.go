package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
)

func newTestService() Service {
	return NewService(NewMemoryRepository(), auth.NewBcryptPasswordHasherWithCost(4))
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	u, err := svc.Register(ctx, "  Ada@Lab.EDU ", "password123", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@lab.edu", u.Email)
	assert.Equal(t, RoleStudent, u.Role)
	assert.False(t, u.IsPrivileged())

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, "ada@lab.edu", "password123", "Ada again")
		assert.ErrorIs(t, err, ErrEmailAlreadyUsed)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, "bob@lab.edu", "short", "Bob")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("empty email", func(t *testing.T) {
		_, err := svc.Register(ctx, "   ", "password123", "Nobody")
		assert.ErrorIs(t, err, ErrEmailRequired)
	})

	t.Run("login success records last login", func(t *testing.T) {
		got, err := svc.Login(ctx, "ADA@lab.edu", "password123")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.NotNil(t, got.LastLoginAt)
	})

	t.Run("login wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "ada@lab.edu", "nope-nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("login unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@lab.edu", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_SetRole(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	u, err := svc.Register(ctx, "grace@lab.edu", "password123", "Grace")
	require.NoError(t, err)

	got, err := svc.SetRole(ctx, u.ID, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, got.IsPrivileged())

	_, err = svc.SetRole(ctx, u.ID, Role("overlord"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.SetRole(ctx, "missing", RoleFaculty)
	assert.ErrorIs(t, err, ErrNotFound)
}
