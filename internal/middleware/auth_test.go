package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendormitra/server/internal/auth"
	"github.com/vendormitra/server/internal/model"
	"github.com/vendormitra/server/internal/repo"
)

func newAuthFixture(t *testing.T, accessTTL time.Duration) (*auth.TokenService, *repo.MemoryUserRepo, model.User) {
	t.Helper()

	tokens := auth.NewTokenService(
		"test-access-secret-at-least-32-characters",
		"test-refresh-secret-at-least-32-characters",
		accessTTL,
		7*24*time.Hour,
	)
	users := repo.NewMemoryUserRepo()
	user, err := users.Create(context.Background(), model.User{
		MobileNumber: "+919876543210",
		Name:         "Ramesh Kumar",
		BusinessType: model.BusinessStreetVendor,
	})
	require.NoError(t, err)
	return tokens, users, user
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		mobile, _ := MobileNumber(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id.String(), "mobile": mobile})
	})
}

func doAuth(t *testing.T, handler http.Handler, header string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestAuthenticate_AttachesIdentity(t *testing.T) {
	tokens, users, user := newAuthFixture(t, time.Hour)
	token, err := tokens.IssueAccessToken(user.ID, user.MobileNumber)
	require.NoError(t, err)

	rec, body := doAuth(t, Authenticate(tokens, users)(echoIdentity()), "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID.String(), body["id"])
	assert.Equal(t, user.MobileNumber, body["mobile"])
}

func TestAuthenticate_MissingToken(t *testing.T) {
	tokens, users, _ := newAuthFixture(t, time.Hour)

	rec, body := doAuth(t, Authenticate(tokens, users)(echoIdentity()), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenRequired, body["code"])
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	tokens, users, _ := newAuthFixture(t, time.Hour)
	mw := Authenticate(tokens, users)(echoIdentity())

	for _, header := range []string{"Bearer", "Bearer ", "Basic abc", "token-without-scheme"} {
		rec, body := doAuth(t, mw, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, CodeTokenRequired, body["code"], "header %q", header)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	tokens, users, user := newAuthFixture(t, -time.Minute)
	token, err := tokens.IssueAccessToken(user.ID, user.MobileNumber)
	require.NoError(t, err)

	rec, body := doAuth(t, Authenticate(tokens, users)(echoIdentity()), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenExpired, body["code"], "clients key silent refresh off this code")
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	tokens, users, _ := newAuthFixture(t, time.Hour)

	rec, body := doAuth(t, Authenticate(tokens, users)(echoIdentity()), "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenInvalid, body["code"])
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	tokens, users, user := newAuthFixture(t, time.Hour)
	token, err := tokens.IssueAccessToken(user.ID, user.MobileNumber)
	require.NoError(t, err)

	require.NoError(t, users.Delete(context.Background(), user.ID))

	rec, body := doAuth(t, Authenticate(tokens, users)(echoIdentity()), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUserNotFound, body["code"])
}
