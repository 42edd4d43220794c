package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"careerhub/internal/app"
	"careerhub/internal/model"
	"careerhub/internal/transport/http/middleware"
	"careerhub/internal/transport/http/response"
)

type LoginRecorder interface {
	ObserveLogin(outcome string)
}

type CookieSettings struct {
	Name   string
	Domain string
	Secure bool
}

type AuthHandler struct {
	authService *app.AuthService
	cookie      CookieSettings
	metrics     LoginRecorder
}

type SignupRequest struct {
	Name            string `json:"name" binding:"required,min=1,max=128"`
	Username        string `json:"username" binding:"required,username"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,max=72"`
}

type profileView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func toProfileView(u *model.User) profileView {
	return profileView{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email}
}

// NewAuthHandler builds the auth endpoints. metrics may be nil.
func NewAuthHandler(authService *app.AuthService, cookie CookieSettings, metrics LoginRecorder) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie, metrics: metrics}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, validationMessage(err))
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Name:            req.Name,
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		ClientIP:        c.ClientIP(),
	})
	if err != nil {
		writeServiceError(c, err, "signup failed")
		return
	}

	h.setSessionCookie(c, result.Token)
	response.Token(c, result.Token, toProfileView(result.User))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, validationMessage(err))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			h.observeLogin("invalid")
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			h.observeLogin("error")
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	h.observeLogin("success")
	h.setSessionCookie(c, result.Token)
	response.Token(c, result.Token, nil)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
	response.OK(c, nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "fetch current user failed")
		return
	}
	response.OK(c, toProfileView(user))
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.authService.TokenTTL()/time.Second), "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) observeLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveLogin(outcome)
	}
}

// writeServiceError maps service sentinels to status codes. Anything unknown is
// a 500 with a generic message.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusUnauthorized, response.CodeUserNotFound, err.Error())
	case errors.Is(err, app.ErrUsernameTaken):
		response.Error(c, http.StatusConflict, response.CodeUsernameTaken, err.Error())
	case errors.Is(err, app.ErrEmailTaken):
		response.Error(c, http.StatusConflict, response.CodeEmailTaken, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
