package handlers

import (
	"net/http"

	"shoreline/internal/models"

	"github.com/gin-gonic/gin"
)

// SignIn - POST /auth/sign-in
// Вход по email и паролю
func (h *Handlers) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Auth.SignIn(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to sign in")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetCurrentUser - GET /api/users/me
// Профиль текущего пользователя
func (h *Handlers) GetCurrentUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	user, err := h.services.Users.Get(c.Request.Context(), a.UID)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// CreateUser - POST /adminUser/create-user
// Создать пользователя
func (h *Handlers) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Users.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// UpdateUser - PUT /adminUser/update-user/:userId
// Обновить пользователя
func (h *Handlers) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Users.Update(c.Request.Context(), c.Param("userId"), &req); err != nil {
		h.handleServiceError(c, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User updated successfully"})
}

// DeleteUser - DELETE /adminUser/delete-user/:userId
// Удалить пользователя
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.services.Users.Delete(c.Request.Context(), c.Param("userId")); err != nil {
		h.handleServiceError(c, err, "Failed to delete user")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User deleted successfully"})
}

// GetUserLastLoginTime - GET /adminUser/getUserLastLoginTime/:uid
// Время последнего входа пользователя
func (h *Handlers) GetUserLastLoginTime(c *gin.Context) {
	response, err := h.services.Users.LastLoginTime(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to get last login time")
		return
	}

	c.JSON(http.StatusOK, response)
}
