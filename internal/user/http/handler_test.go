package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

type testEnv struct {
	router *gin.Engine
	repo   user.Repository
	jwt    *auth.JWTManager
}

func setupRouter(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := user.NewMemoryRepository()
	svc := user.NewService(repo, auth.NewBcryptPasswordHasherWithCost(4))
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewUserHandler(svc, jwtManager), auth.AuthRequired(jwtManager))
	return testEnv{router: r, repo: repo, jwt: jwtManager}
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginMe(t *testing.T) {
	env := setupRouter(t)

	w := doJSON(env.router, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": "ada@lab.edu", "password": "password123", "display_name": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(env.router, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": "ada@lab.edu", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(env.router, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "ada@lab.edu", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(env.router, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "ada@lab.edu", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "student", login.User.Role)

	w = doJSON(env.router, http.MethodGet, "/v1/users/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "Ada", me.DisplayName)

	w = doJSON(env.router, http.MethodGet, "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetRole(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	admin := &user.User{Email: "admin@lab.edu", DisplayName: "Admin", Role: user.RoleAdmin, IsActive: true}
	student := &user.User{Email: "stu@lab.edu", DisplayName: "Stu", Role: user.RoleStudent, IsActive: true}
	require.NoError(t, env.repo.Create(ctx, admin))
	require.NoError(t, env.repo.Create(ctx, student))

	adminToken, err := env.jwt.GenerateAccessToken(admin.ID, admin.Email)
	require.NoError(t, err)
	studentToken, err := env.jwt.GenerateAccessToken(student.ID, student.Email)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
	}{
		{"student cannot promote", studentToken, gin.H{"role": "admin"}, http.StatusForbidden},
		{"unknown role rejected", adminToken, gin.H{"role": "overlord"}, http.StatusBadRequest},
		{"admin promotes", adminToken, gin.H{"role": "faculty"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(env.router, http.MethodPatch, "/v1/users/"+student.ID+"/role", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	got, err := env.repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleFaculty, got.Role)
}
