package unit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	apihandlers "github.com/trendyx/identity-service/internal/adapters/http/api/v1/handlers"
	"github.com/trendyx/identity-service/internal/domain"
	"github.com/trendyx/identity-service/internal/tokenverify"
	"github.com/trendyx/identity-service/internal/usecase"
	res "github.com/trendyx/identity-service/pkg/http"
)

type mockAuthService struct {
	registerFn       func(p usecase.RegisterParams) (*domain.User, *usecase.Tokens, error)
	signInFn         func(email, password string) (*domain.User, *usecase.Tokens, string, error)
	refreshFn        func(token string) (*usecase.Tokens, error)
	logoutFn         func(sessionID, refreshToken string) error
	getProfileFn     func(userID string) (*domain.Profile, error)
	updateProfileFn  func(userID string, update domain.ProfileUpdate) (*domain.Profile, error)
	changePasswordFn func(userID, oldPassword, newPassword string) error
	verifyTokenFn    func(token string) (*tokenverify.Result, error)
}

func (m *mockAuthService) Register(_ context.Context, _ string, p usecase.RegisterParams) (*domain.User, *usecase.Tokens, error) {
	return m.registerFn(p)
}

func (m *mockAuthService) SignIn(_ context.Context, _ string, email, password string, _ usecase.SessionMeta) (*domain.User, *usecase.Tokens, string, error) {
	return m.signInFn(email, password)
}

func (m *mockAuthService) Refresh(_ context.Context, _, _ string, token string) (*usecase.Tokens, error) {
	return m.refreshFn(token)
}

func (m *mockAuthService) Logout(_ context.Context, _, sessionID, refreshToken string) error {
	if m.logoutFn == nil {
		return nil
	}
	return m.logoutFn(sessionID, refreshToken)
}

func (m *mockAuthService) GetProfile(_ context.Context, _, userID string) (*domain.Profile, error) {
	return m.getProfileFn(userID)
}

func (m *mockAuthService) UpdateProfile(_ context.Context, _, userID string, update domain.ProfileUpdate) (*domain.Profile, error) {
	return m.updateProfileFn(userID, update)
}

func (m *mockAuthService) ChangePassword(_ context.Context, _, userID, oldPassword, newPassword string) error {
	return m.changePasswordFn(userID, oldPassword, newPassword)
}

func (m *mockAuthService) VerifyToken(_ context.Context, _, token string) (*tokenverify.Result, error) {
	return m.verifyTokenFn(token)
}

func (m *mockAuthService) Authorize(role string, required ...string) error {
	if role == "admin" || len(required) == 0 {
		return nil
	}
	return domain.ErrForbidden
}

// ensure interface compliance
var _ usecase.Service = (*mockAuthService)(nil)

func postJSON(t *testing.T, e *echo.Echo, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp res.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestRegisterHandlerSuccess(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		registerFn: func(p usecase.RegisterParams) (*domain.User, *usecase.Tokens, error) {
			if p.Email != "user@example.com" {
				t.Fatalf("unexpected email: %s", p.Email)
			}
			return &domain.User{ID: "u-1", Email: p.Email}, &usecase.Tokens{AccessToken: "at", RefreshToken: "rt"}, nil
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"email": "user@example.com", "password": "Abcdef1!"})
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		User   *domain.User    `json:"user"`
		Tokens *usecase.Tokens `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != "u-1" || resp.Tokens.AccessToken != "at" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		registerFn: func(usecase.RegisterParams) (*domain.User, *usecase.Tokens, error) {
			t.Fatalf("service must not be reached on invalid payload")
			return nil, nil, nil
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"email": "not-an-email", "password": "Abcdef1!"})
	_ = h.Register(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "invalid_input" {
		t.Fatalf("unexpected error code: %s", code)
	}
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		registerFn: func(usecase.RegisterParams) (*domain.User, *usecase.Tokens, error) {
			return nil, nil, domain.ErrDuplicateIdentity
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"email": "user@example.com", "password": "Abcdef1!"})
	_ = h.Register(c)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "duplicate_identity" {
		t.Fatalf("unexpected error code: %s", code)
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		signInFn: func(string, string) (*domain.User, *usecase.Tokens, string, error) {
			return nil, nil, "", domain.ErrInvalidCredentials
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"email": "user@example.com", "password": "wrong"})
	_ = h.Login(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp res.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error.Code != "invalid_credentials" || resp.Error.Message != "invalid credentials" {
		t.Fatalf("credential errors must stay generic: %+v", resp.Error)
	}
}

func TestLoginHandlerLocked(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		signInFn: func(string, string) (*domain.User, *usecase.Tokens, string, error) {
			return nil, nil, "", domain.ErrAccountLocked
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"email": "user@example.com", "password": "Abcdef1!"})
	_ = h.Login(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "account_locked" {
		t.Fatalf("unexpected error code: %s", code)
	}
}

func TestLogoutHandlerAlwaysOK(t *testing.T) {
	e := echo.New()
	h := apihandlers.NewAuthHandler(&mockAuthService{})

	c, rec := postJSON(t, e, map[string]string{"session_id": "unknown", "refresh_token": "unknown"})
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateProfileHandler(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		updateProfileFn: func(userID string, update domain.ProfileUpdate) (*domain.Profile, error) {
			if userID != "u-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			if update.Bio == nil || *update.Bio != "hello" {
				t.Fatalf("bio not bound: %+v", update)
			}
			if update.Avatar != nil {
				t.Fatalf("unset scalar must stay nil")
			}
			p := domain.NewProfile(userID, time.Now().UTC())
			p.Bio = *update.Bio
			return p, nil
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]interface{}{"bio": "hello", "preferences": map[string]string{"theme": "dark"}})
	c.Set("user_id", "u-1")
	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChangePasswordHandlerWrongOld(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		changePasswordFn: func(string, string, string) error {
			return domain.ErrInvalidCredentials
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"old_password": "wrong", "new_password": "Newpass1!"})
	c.Set("user_id", "u-1")
	_ = h.ChangePassword(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVerifyTokenHandler(t *testing.T) {
	e := echo.New()
	svc := &mockAuthService{
		verifyTokenFn: func(token string) (*tokenverify.Result, error) {
			if token != "good" {
				return nil, domain.ErrInvalidToken
			}
			return &tokenverify.Result{UserID: "u-1", Email: "user@example.com", Role: "admin"}, nil
		},
	}
	h := apihandlers.NewAuthHandler(svc)

	c, rec := postJSON(t, e, map[string]string{"token": "good"})
	if err := h.VerifyToken(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["user_id"] != "u-1" || resp["role"] != "admin" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	c, rec = postJSON(t, e, map[string]string{"token": "bad"})
	_ = h.VerifyToken(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
