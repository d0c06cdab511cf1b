package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trendyx/identity-service/internal/domain"
	"github.com/trendyx/identity-service/internal/usecase"
	res "github.com/trendyx/identity-service/pkg/http"
)

type AuthHandler struct {
	service  usecase.Service
	validate *validator.Validate
}

func NewAuthHandler(s usecase.Service) *AuthHandler {
	return &AuthHandler{service: s, validate: validator.New()}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Company   string `json:"company" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	SessionID    string `json:"session_id"`
}

type logoutRequest struct {
	SessionID    string `json:"session_id"`
	RefreshToken string `json:"refresh_token"`
}

type updateProfileRequest struct {
	Avatar      *string                `json:"avatar"`
	Bio         *string                `json:"bio"`
	Preferences map[string]interface{} `json:"preferences"`
	Settings    map[string]interface{} `json:"settings"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type verifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type authResponse struct {
	User      *domain.User    `json:"user"`
	Tokens    *usecase.Tokens `json:"tokens"`
	SessionID string          `json:"session_id,omitempty"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(registerRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	user, tokens, err := h.service.Register(c.Request().Context(), traceID, usecase.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
	})
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

func (h *AuthHandler) Login(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(loginRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	meta := usecase.SessionMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
	user, tokens, sessionID, err := h.service.SignIn(c.Request().Context(), traceID, req.Email, req.Password, meta)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens, SessionID: sessionID})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(refreshRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	tokens, err := h.service.Refresh(c.Request().Context(), traceID, req.SessionID, req.RefreshToken)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Logout always succeeds so clients can discard state unconditionally.
func (h *AuthHandler) Logout(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(logoutRequest)
	_ = c.Bind(req)
	_ = h.service.Logout(c.Request().Context(), traceID, req.SessionID, req.RefreshToken)
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) VerifyToken(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(verifyTokenRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	result, err := h.service.VerifyToken(c.Request().Context(), traceID, req.Token)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": result.UserID,
		"email":   result.Email,
		"role":    result.Role,
		"claims":  result.Claims,
	})
}

func (h *AuthHandler) GetProfile(c echo.Context) error {
	traceID := res.RequestID(c)
	userID := c.Get("user_id").(string)
	profile, err := h.service.GetProfile(c.Request().Context(), traceID, userID)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return res.JSON(c, http.StatusOK, profile)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(updateProfileRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	userID := c.Get("user_id").(string)
	profile, err := h.service.UpdateProfile(c.Request().Context(), traceID, userID, domain.ProfileUpdate{
		Avatar:      req.Avatar,
		Bio:         req.Bio,
		Preferences: req.Preferences,
		Settings:    req.Settings,
	})
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return res.JSON(c, http.StatusOK, profile)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(changePasswordRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	userID := c.Get("user_id").(string)
	if err := h.service.ChangePassword(c.Request().Context(), traceID, userID, req.OldPassword, req.NewPassword); err != nil {
		return errorJSON(c, traceID, err)
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := h.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}
	return nil
}
