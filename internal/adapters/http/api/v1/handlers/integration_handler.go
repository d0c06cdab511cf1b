package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trendyx/identity-service/internal/domain"
	"github.com/trendyx/identity-service/internal/usecase"
	res "github.com/trendyx/identity-service/pkg/http"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

type IntegrationHandler struct {
	service  usecase.IntegrationService
	validate *validator.Validate
}

func NewIntegrationHandler(s usecase.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: s, validate: validator.New()}
}

type initiateSignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Plan         string `json:"plan" validate:"max=50"`
	ReferralCode string `json:"referral_code" validate:"max=50"`
}

type initiateLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type redeemSignupRequest struct {
	Token string `json:"token" validate:"required"`
}

type redeemLoginRequest struct {
	Token    string `json:"token" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type webhookEnvelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func (h *IntegrationHandler) InitiateSignup(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(initiateSignupRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	grant, err := h.service.InitiateSignup(c.Request().Context(), traceID, usecase.SignupRequest{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Plan:         req.Plan,
		ReferralCode: req.ReferralCode,
	}, c.Request().Header.Get(echo.HeaderOrigin))
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *IntegrationHandler) RedeemSignup(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(redeemSignupRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	user, tokens, setupRequired, err := h.service.RedeemSignup(c.Request().Context(), traceID, req.Token)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"user":                    user,
		"tokens":                  tokens,
		"password_setup_required": setupRequired,
	})
}

func (h *IntegrationHandler) InitiateLogin(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(initiateLoginRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	grant, err := h.service.InitiateLogin(c.Request().Context(), traceID, req.Email, c.Request().Header.Get(echo.HeaderOrigin))
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *IntegrationHandler) RedeemLogin(c echo.Context) error {
	traceID := res.RequestID(c)
	req := new(redeemLoginRequest)
	if err := h.bind(c, req); err != nil {
		return errorJSON(c, traceID, err)
	}
	meta := usecase.SessionMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
	user, tokens, sessionID, err := h.service.RedeemLogin(c.Request().Context(), traceID, req.Token, req.Email, req.Password, meta)
	if err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens, SessionID: sessionID})
}

// Webhook verifies the body signature before any parsing happens.
func (h *IntegrationHandler) Webhook(c echo.Context) error {
	traceID := res.RequestID(c)
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, traceID, fmt.Errorf("%w: unreadable body", domain.ErrInvalidInput))
	}
	if err := h.service.VerifyWebhook(body, c.Request().Header.Get(SignatureHeader)); err != nil {
		return errorJSON(c, traceID, err)
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Event == "" {
		return errorJSON(c, traceID, fmt.Errorf("%w: malformed event", domain.ErrInvalidInput))
	}
	if err := h.service.HandleWebhookEvent(c.Request().Context(), traceID, envelope.Event, envelope.Data); err != nil {
		return errorJSON(c, traceID, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
}

func (h *IntegrationHandler) Stats(c echo.Context) error {
	return res.JSON(c, http.StatusOK, h.service.Stats())
}

func (h *IntegrationHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := h.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}
	return nil
}
