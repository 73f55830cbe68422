package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-booking-server/internal/scheduling"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Accepted sends a 202 response for work handed off to a background job.
func Accepted(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, ResponseData{
		Status:  http.StatusAccepted,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.JSON(statusCode, ResponseData{
		Status:  statusCode,
		Message: "An error occurred",
		Error:   errorMessage,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *gin.Context, errorMessage string) {
	Error(c, http.StatusConflict, errorMessage)
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}

// SchedulingError maps the scheduling engine's error taxonomy onto the HTTP
// envelope. InvalidTime and SlotTaken are user-correctable (400-class),
// NotFound/Forbidden are resource mismatches, anything else is a storage
// failure surfaced as 500.
func SchedulingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidTime):
		BadRequest(c, err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken), errors.Is(err, scheduling.ErrSlotUnavailable):
		Conflict(c, err.Error())
	case errors.Is(err, scheduling.ErrInvalidState):
		BadRequest(c, err.Error())
	case errors.Is(err, scheduling.ErrNotFound), errors.Is(err, scheduling.ErrDoctorNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, scheduling.ErrForbidden):
		Forbidden(c, err.Error())
	default:
		InternalServerError(c, "Scheduling operation failed: "+err.Error())
	}
}
