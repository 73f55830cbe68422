package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/utils"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

// RegisterRequest represents the request body for self-registration.
// Self-registration always creates a patient; doctors are added by an admin.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Address  string `json:"address"`
}

// Register handles creating a new patient account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existing models.User
	if err := h.DB.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		utils.BadRequest(c, "Username or email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     models.RolePatient,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		patient := models.Patient{UserID: user.ID, Address: req.Address}
		return tx.Create(&patient).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token alongside basic identity data.
type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	Role        models.Role `json:"role"`
	Username    string      `json:"username"`
}

// Login handles authenticating a user and issuing a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Bad username or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Bad username or password")
		return
	}

	token, err := utils.GenerateToken(&user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to issue token: "+err.Error())
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		Username:    user.Username,
	})
}
