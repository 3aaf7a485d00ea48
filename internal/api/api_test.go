package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/dependencies/mocks"
	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/poll"
	"github.com/klubhuset/backend/internal/storage/memory"
	"github.com/klubhuset/backend/internal/testutil"
)

func generateKeyPair(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})
	return privatePEM, publicPEM
}

// fakePresence records roster updates triggered by profile changes
type fakePresence struct {
	mu         sync.Mutex
	renames    [][2]string
	removed    []string
	broadcasts int
}

func (f *fakePresence) Rename(oldName, newName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, [2]string{oldName, newName})
}

func (f *fakePresence) ForceRemove(idOrName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, idOrName)
}

func (f *fakePresence) Broadcast() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts++
}

type nopBroadcaster struct{}

func (nopBroadcaster) ToAll(event string, data any) {}

type APISuite struct {
	suite.Suite
	store    *memory.Storage
	polls    *poll.Service
	presence *fakePresence
	server   *httptest.Server
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.store = memory.New()
	s.presence = &fakePresence{}

	clk := mocks.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	privatePEM, publicPEM := generateKeyPair(s.T())
	tokens, err := auth.NewTokenService(privatePEM, publicPEM, clk, testutil.NopLogger())
	s.Require().NoError(err)

	accounts := auth.NewService(s.store, s.store, tokens, testutil.NopLogger())
	s.polls = poll.NewService(s.store, nopBroadcaster{}, testutil.NopLogger())

	s.Require().NoError(s.store.SavePoll(context.Background(), &model.Poll{
		ID:       1,
		Question: "Hvad skal vi spille fredag?",
		Options:  []string{"Hangman", "Farvespil"},
		IsActive: true,
	}))

	router := NewRouter(RouterConfig{
		Logger:   testutil.NopLogger(),
		Accounts: accounts,
		Tokens:   tokens,
		Polls:    s.polls,
		Presence: s.presence,
	})
	s.server = httptest.NewServer(router)
}

func (s *APISuite) TearDownTest() {
	s.server.Close()
}

func (s *APISuite) request(method, path, token string, body any) *http.Response {
	s.T().Helper()

	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *APISuite) decode(resp *http.Response, out any) {
	s.T().Helper()
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

type authBody struct {
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"user"`
	Token string `json:"token"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// register creates an account through the API and returns its token
func (s *APISuite) register(username, email, password string) string {
	s.T().Helper()

	resp := s.request(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var body authBody
	s.decode(resp, &body)
	s.Require().NotEmpty(body.Token)
	return body.Token
}

func (s *APISuite) TestRegister() {
	resp := s.request(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "viggo",
		"email":    "viggo@example.com",
		"password": "hemmeligt",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)

	var body authBody
	s.decode(resp, &body)
	s.Equal("viggo", body.User.Username)
	s.Equal("viggo@example.com", body.User.Email)
	s.Equal("User", body.User.Role)
	s.NotEmpty(body.Token)

	sawCookie := false
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			sawCookie = true
			s.Equal(body.Token, c.Value)
			s.True(c.HttpOnly)
		}
	}
	s.True(sawCookie, "expected a jwt session cookie")
}

func (s *APISuite) TestRegisterValidation() {
	cases := []struct {
		name string
		req  map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "a@b.dk", "password": "hemmeligt"}},
		{"short password", map[string]string{"username": "viggo", "email": "a@b.dk", "password": "kort"}},
		{"missing email", map[string]string{"username": "viggo", "password": "hemmeligt"}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			resp := s.request(http.MethodPost, "/api/auth/register", "", tc.req)
			var body errorBody
			s.decode(resp, &body)
			s.Equal(http.StatusBadRequest, resp.StatusCode)
			s.Equal("INVALID_REQUEST", body.Error.Code)
		})
	}
}

func (s *APISuite) TestRegisterDuplicateUsername() {
	s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "viggo",
		"email":    "other@example.com",
		"password": "hemmeligt",
	})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("USERNAME_EXISTS", body.Error.Code)
}

func (s *APISuite) TestLogin() {
	s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "viggo",
		"password": "hemmeligt",
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	var body authBody
	s.decode(resp, &body)
	s.Equal("viggo", body.User.Username)
	s.NotEmpty(body.Token)
}

func (s *APISuite) TestLoginWrongPassword() {
	s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "viggo",
		"password": "forkert",
	})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_CREDENTIALS", body.Error.Code)
}

func (s *APISuite) TestLoginUnknownUserSameAsWrongPassword() {
	resp := s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "findesikke",
		"password": "hemmeligt",
	})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_CREDENTIALS", body.Error.Code)
}

func (s *APISuite) TestCheckAvailability() {
	s.register("viggo", "viggo@example.com", "hemmeligt")

	var avail struct {
		Available bool `json:"available"`
	}

	resp := s.request(http.MethodGet, "/api/auth/check-username?username=viggo", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &avail)
	s.False(avail.Available)

	resp = s.request(http.MethodGet, "/api/auth/check-username?username=ledig", "", nil)
	s.decode(resp, &avail)
	s.True(avail.Available)

	resp = s.request(http.MethodGet, "/api/auth/check-email?email=viggo@example.com", "", nil)
	s.decode(resp, &avail)
	s.False(avail.Available)

	resp = s.request(http.MethodGet, "/api/auth/check-email?email=fri@example.com", "", nil)
	s.decode(resp, &avail)
	s.True(avail.Available)
}

func (s *APISuite) TestMeRequiresAuth() {
	resp := s.request(http.MethodGet, "/api/me", "", nil)
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("UNAUTHORIZED", body.Error.Code)
}

func (s *APISuite) TestMeRejectsGarbageToken() {
	resp := s.request(http.MethodGet, "/api/me", "not.a.token", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestProfileExport() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	user, err := s.store.GetUserByUsername(context.Background(), "viggo")
	s.Require().NoError(err)
	s.Require().NoError(s.store.RecordVote(context.Background(), 1, user.ID, "Hangman"))

	resp := s.request(http.MethodGet, "/api/me", token, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var profile struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Votes []struct {
			PollID int64  `json:"poll_id"`
			Option string `json:"option"`
		} `json:"votes"`
	}
	s.decode(resp, &profile)
	s.Equal("viggo", profile.User.Username)
	s.Require().Len(profile.Votes, 1)
	s.Equal(int64(1), profile.Votes[0].PollID)
	s.Equal("Hangman", profile.Votes[0].Option)
}

func (s *APISuite) TestChangeUsername() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPut, "/api/me/username", token, map[string]string{
		"new_username": "viggo2",
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	s.decode(resp, &body)
	s.Equal("viggo2", body.Username)
	s.NotEmpty(body.Token)

	// The old token names a user that no longer exists
	resp = s.request(http.MethodGet, "/api/me", token, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// The fresh one works
	resp = s.request(http.MethodGet, "/api/me", body.Token, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestChangeUsernameOnlyOnce() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPut, "/api/me/username", token, map[string]string{"new_username": "viggo2"})
	var first struct {
		Token string `json:"token"`
	}
	s.decode(resp, &first)

	resp = s.request(http.MethodPut, "/api/me/username", first.Token, map[string]string{"new_username": "viggo3"})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("USERNAME_ALREADY_CHANGED", body.Error.Code)
}

func (s *APISuite) TestChangeUsernameAdminUpdatesRoster() {
	s.Require().NoError(s.seedAdmin("Mette", "mette@example.com", "hemmeligt"))

	resp := s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "Mette",
		"password": "hemmeligt",
	})
	var login authBody
	s.decode(resp, &login)

	resp = s.request(http.MethodPut, "/api/me/username", login.Token, map[string]string{"new_username": "MetteF"})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	s.presence.mu.Lock()
	defer s.presence.mu.Unlock()
	s.Require().Len(s.presence.renames, 1)
	s.Equal([2]string{"Mette", "MetteF"}, s.presence.renames[0])
	s.Equal(1, s.presence.broadcasts)
}

func (s *APISuite) TestChangePassword() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPut, "/api/me/password", token, map[string]string{
		"current_password": "hemmeligt",
		"new_password":     "endnu-mere-hemmeligt",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does
	resp = s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "viggo",
		"password": "hemmeligt",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "viggo",
		"password": "endnu-mere-hemmeligt",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestChangePasswordWrongCurrent() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodPut, "/api/me/password", token, map[string]string{
		"current_password": "forkert",
		"new_password":     "endnu-mere-hemmeligt",
	})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_CREDENTIALS", body.Error.Code)
}

func (s *APISuite) TestDeleteRequiresConfirmation() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	resp := s.request(http.MethodDelete, "/api/me", token, map[string]bool{"confirm": false})
	var body errorBody
	s.decode(resp, &body)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("INVALID_REQUEST", body.Error.Code)

	// Account still exists
	resp = s.request(http.MethodGet, "/api/me", token, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestDeleteAccount() {
	token := s.register("viggo", "viggo@example.com", "hemmeligt")

	user, err := s.store.GetUserByUsername(context.Background(), "viggo")
	s.Require().NoError(err)
	s.Require().NoError(s.store.RecordVote(context.Background(), 1, user.ID, "Hangman"))

	resp := s.request(http.MethodDelete, "/api/me", token, map[string]bool{"confirm": true})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// Account, token and votes are all gone
	resp = s.request(http.MethodGet, "/api/me", token, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, err = s.store.GetUserByUsername(context.Background(), "viggo")
	s.ErrorIs(err, model.ErrUserNotFound)

	tally, err := s.store.Tally(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(0, tally["Hangman"])

	s.presence.mu.Lock()
	defer s.presence.mu.Unlock()
	s.Equal([]string{"viggo"}, s.presence.removed)
}

func (s *APISuite) TestGetActivePoll() {
	resp := s.request(http.MethodGet, "/api/poll", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var view struct {
		ID       int64          `json:"id"`
		Question string         `json:"question"`
		Options  map[string]int `json:"options"`
	}
	s.decode(resp, &view)
	s.Equal(int64(1), view.ID)
	s.Equal("Hvad skal vi spille fredag?", view.Question)
	s.Equal(map[string]int{"Hangman": 0, "Farvespil": 0}, view.Options)
}

func (s *APISuite) TestHealth() {
	resp := s.request(http.MethodGet, "/api/health", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

// seedAdmin plants an admin account directly in the store; signup
// only ever produces ordinary users.
func (s *APISuite) seedAdmin(username, email, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.store.CreateUser(context.Background(), &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	return nil
}
