package transport

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/middleware"
)

func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	invalid := []RegisterRequest{
		{Email: "", Password: "ValidPass123", FirstName: "John", LastName: "Doe"},
		{Email: "not-an-email", Password: "ValidPass123", FirstName: "John", LastName: "Doe"},
		{Email: "test@example.com", Password: "short", FirstName: "John", LastName: "Doe"},
		{Email: "test@example.com", Password: "ValidPass123"},
		{Email: "test@example.com", Password: "ValidPass123", FirstName: "  ", LastName: "Doe"},
	}

	properties := gopter.NewProperties(nil)

	properties.Property("invalid registrations get 400 with field errors", prop.ForAll(
		func(i int) bool {
			env := newTestEnv(t)
			w := env.doJSON(t, http.MethodPost, "/api/users/register", invalid[i])

			if w.Code != http.StatusBadRequest {
				t.Logf("case %d: expected 400, got %d", i, w.Code)
				return false
			}
			resp := decodeBody[middleware.ErrorResponse](t, w)
			_, hasFields := resp.Error.Details["validation_errors"]
			return hasFields
		},
		gen.IntRange(0, len(invalid)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_SuccessfulRegistrationReturnsProfile(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration returns the profile", prop.ForAll(
		func(email, password, firstName, lastName string) bool {
			env := newTestEnv(t)
			w := env.doJSON(t, http.MethodPost, "/api/users/register", RegisterRequest{
				Email: email, Password: password, FirstName: firstName, LastName: lastName,
			})
			if w.Code != http.StatusCreated {
				t.Logf("expected 201, got %d: %s", w.Code, w.Body.String())
				return false
			}

			profile := decodeBody[UserProfile](t, w)
			_, idErr := uuid.Parse(profile.ID)

			return idErr == nil &&
				profile.Email == email &&
				profile.FirstName == firstName &&
				profile.LastName == lastName &&
				profile.Role == domain.RoleUser
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	req := RegisterRequest{Email: "bo@shop.test", Password: "password123", FirstName: "Bo", LastName: "Buyer"}

	require.Equal(t, http.StatusCreated, env.doJSON(t, http.MethodPost, "/api/users/register", req).Code)

	req.Email = "BO@shop.test"
	assert.Equal(t, http.StatusConflict, env.doJSON(t, http.MethodPost, "/api/users/register", req).Code)
}

func TestRegisterAdminEmailGetsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	w := env.doJSON(t, http.MethodPost, "/api/users/register", RegisterRequest{
		Email: testAdminEmail, Password: "password123", FirstName: "Shop", LastName: "Owner",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, domain.RoleAdmin, decodeBody[UserProfile](t, w).Role)
}

func TestLoginRefreshProfileLogout(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.doJSON(t, http.MethodPost, "/api/users/register", RegisterRequest{
		Email: "bo@shop.test", Password: "password123", FirstName: "Bo", LastName: "Buyer",
	}).Code)

	bad := env.doJSON(t, http.MethodPost, "/api/users/login", LoginRequest{Email: "bo@shop.test", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	w := env.doJSON(t, http.MethodPost, "/api/users/login", LoginRequest{Email: "bo@shop.test", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeBody[LoginResponse](t, w)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	assert.Equal(t, "bo@shop.test", login.User.Email)

	profile := env.doJSON(t, http.MethodGet, "/api/users/profile", nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, profile.Code)
	assert.Equal(t, login.User.ID, decodeBody[UserProfile](t, profile).ID)

	assert.Equal(t, http.StatusUnauthorized, env.doJSON(t, http.MethodGet, "/api/users/profile", nil).Code)

	refreshed := env.doJSON(t, http.MethodPost, "/api/users/refresh", RefreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, refreshed.Code)
	assert.NotEmpty(t, decodeBody[RefreshResponse](t, refreshed).AccessToken)

	out := env.doJSON(t, http.MethodPost, "/api/users/logout", RefreshRequest{RefreshToken: login.RefreshToken}, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, out.Code)

	again := env.doJSON(t, http.MethodPost, "/api/users/refresh", RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

func TestLogoutAllRevokesEveryRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	access := env.token(t, "bo@shop.test")

	var refreshTokens []string
	for i := 0; i < 2; i++ {
		w := env.doJSON(t, http.MethodPost, "/api/users/login", LoginRequest{Email: "bo@shop.test", Password: "password123"})
		require.Equal(t, http.StatusOK, w.Code)
		refreshTokens = append(refreshTokens, decodeBody[LoginResponse](t, w).RefreshToken)
	}

	require.Equal(t, http.StatusOK, env.doJSON(t, http.MethodPost, "/api/users/logout-all", nil, withBearer(access)).Code)

	for _, rt := range refreshTokens {
		w := env.doJSON(t, http.MethodPost, "/api/users/refresh", RefreshRequest{RefreshToken: rt})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}
