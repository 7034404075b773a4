package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techtwins/user-api/internal/apperr"
	"github.com/techtwins/user-api/internal/middleware"
	"github.com/techtwins/user-api/internal/models"
)

const apiVersion = "1.0.0"

// UserService defines the operations UserHandler dispatches to.
type UserService interface {
	ListUsers(page, perPage int) ([]models.User, *models.Pagination, error)
	GetUser(id int64) (*models.User, error)
	CreateUser(req models.CreateUserRequest) (*models.User, error)
	UpdateUser(id int64, req models.UpdateUserRequest) (*models.User, error)
	DeleteUser(id int64) error
	HealthCheck() string
}

// UserHandler translates HTTP requests into service calls and service errors
// into envelope responses.
type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Index)
	router.GET("/health", h.Health)

	api := router.Group("/api/users")
	{
		api.GET("", h.ListUsers)
		api.POST("", h.CreateUser)
		api.GET("/:id", h.GetUser)
		api.PUT("/:id", h.UpdateUser)
		api.DELETE("/:id", h.DeleteUser)
	}
}

func (h *UserHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "User API",
		"version":   apiVersion,
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": gin.H{
			"GET /":                 "API information",
			"GET /health":           "Health status",
			"GET /api/users":        "List users",
			"POST /api/users":       "Create user",
			"GET /api/users/:id":    "Get user by ID",
			"PUT /api/users/:id":    "Update user",
			"DELETE /api/users/:id": "Delete user",
		},
	})
}

// Health always answers 200; an unreachable store shows up in the database
// field, not in the status code.
func (h *UserHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  h.users.HealthCheck(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 10)

	users, pagination, err := h.users.ListUsers(page, perPage)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Error listing users", err)
		return
	}

	c.JSON(http.StatusOK, models.Response{
		Success:    true,
		Data:       users,
		Pagination: pagination,
	})
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if fieldErrors := middleware.ValidateRequest(req); fieldErrors != nil {
		respondValidationError(c, fieldErrors)
		return
	}

	user, err := h.users.CreateUser(req)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			respondError(c, http.StatusConflict, "Email is already registered", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "Error creating user", err)
		return
	}

	c.JSON(http.StatusCreated, models.Response{
		Success: true,
		Message: "User created successfully",
		Data:    user,
	})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	user, err := h.users.GetUser(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "Error getting user", err)
		return
	}

	c.JSON(http.StatusOK, models.Response{
		Success: true,
		Data:    user,
	})
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if fieldErrors := middleware.ValidateRequest(req); fieldErrors != nil {
		respondValidationError(c, fieldErrors)
		return
	}

	user, err := h.users.UpdateUser(id, req)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			respondError(c, http.StatusNotFound, "User not found", nil)
		case errors.Is(err, apperr.ErrConflict):
			respondError(c, http.StatusConflict, "Email is already registered", nil)
		default:
			respondError(c, http.StatusInternalServerError, "Error updating user", err)
		}
		return
	}

	c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "User updated successfully",
		Data:    user,
	})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "Error deleting user", err)
		return
	}

	c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "User deleted successfully",
	})
}

// paramID parses the :id path segment. A non-numeric id can never match a
// row, so it answers 404 directly.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusNotFound, "User not found", nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

func respondError(c *gin.Context, status int, message string, err error) {
	resp := models.Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

func respondValidationError(c *gin.Context, fieldErrors []apperr.FieldError) {
	errs := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		errs[fe.Field] = fe.Message
	}
	c.JSON(http.StatusBadRequest, models.Response{
		Success: false,
		Message: "Invalid request data",
		Errors:  errs,
	})
}
