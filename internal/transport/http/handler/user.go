package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careerhub/internal/app"
	"careerhub/internal/transport/http/middleware"
	"careerhub/internal/transport/http/response"
)

type UserHandler struct {
	userService *app.UserService
}

// UpdateUserRequest holds the optional profile fields. Any other key,
// including id, is rejected.
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=128"`
	Username *string `json:"username" binding:"omitempty,username"`
	Email    *string `json:"email"`
}

func NewUserHandler(userService *app.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UpdateUserRequest
	if err := bindStrictJSON(c.Request.Body, &req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, validationMessage(err))
		return
	}

	err := h.userService.UpdateUser(c.Request.Context(), userID, app.UpdateUserInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		writeServiceError(c, err, "update user failed")
		return
	}
	response.Created(c, "User updated successfully")
}

func (h *UserHandler) UsernameAvailable(c *gin.Context) {
	username := c.Query("username")
	available, err := h.userService.UsernameAvailable(c.Request.Context(), username)
	if err != nil {
		writeServiceError(c, err, "username lookup failed")
		return
	}
	response.OK(c, gin.H{
		"username":  username,
		"available": available,
	})
}
