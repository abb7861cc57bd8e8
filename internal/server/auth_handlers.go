package server

import (
	"strconv"
	"time"

	"flatnest/internal/cache"
	"flatnest/internal/middleware"
	"flatnest/internal/models"
	"flatnest/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "flatnest-api"
	tokenAudience = "flatnest-client"
	tokenTTL      = 7 * 24 * time.Hour
)

// SignupRequest represents the signup request body
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"` // YYYY-MM-DD
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned on successful signup or login
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Signup godoc
// @Summary      Register a new account
// @Description  Creates a user account and returns a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /api/auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateName(req.FirstName); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("first name: "+err.Error()))
	}
	if err := validation.ValidateName(req.LastName); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("last name: "+err.Error()))
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid birth date, expected YYYY-MM-DD"))
	}
	if err := validation.ValidateBirthDate(birthDate); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	existing, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}
	if existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Email:          req.Email,
		Password:       string(hashed),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		BirthDate:      birthDate,
		ProfileImage:   s.config.DefaultProfileImageURL,
		ProfileImageID: s.config.DefaultProfileImageID,
	}
	if err := s.userRepo.Create(c.UserContext(), user); err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(user.ID, user.IsAdmin)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(c.UserContext(), "user signed up", "user_id", user.ID)
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: *user})
}

// Login godoc
// @Summary      Authenticate
// @Description  Verifies credentials and returns a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /api/auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}
	// Same response for unknown email and wrong password
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid email or password"))
	}

	token, err := s.generateToken(user.ID, user.IsAdmin)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)
	return c.Status(fiber.StatusOK).JSON(AuthResponse{Token: token, User: *user})
}

// generateToken signs a JWT for the user with issuer, audience and a unique
// token ID.
func (s *Server) generateToken(userID uint, isAdmin bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"adm": isAdmin,
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": now.Add(tokenTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// PasswordResetRequest asks for a reset token to be mailed
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirm carries the mailed token and the new password
type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// RequestPasswordReset godoc
// @Summary      Request a password reset
// @Description  Sends a reset token by email; always returns 200 to avoid
// @Description  disclosing whether an address is registered
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      PasswordResetRequest  true  "Email"
// @Success      200      {object}  map[string]string
// @Router       /api/auth/password-reset [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	accepted := fiber.Map{"message": "If that email is registered, a reset link has been sent"}

	user, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil || user == nil {
		return c.Status(fiber.StatusOK).JSON(accepted)
	}

	token := uuid.New().String()
	if err := cache.SetJSON(c.UserContext(), cache.ResetTokenKey(token), user.ID, cache.ResetTokenTTL); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to store reset token", "error", err)
		return c.Status(fiber.StatusOK).JSON(accepted)
	}

	if s.mail != nil {
		if err := s.mail.SendPasswordReset(user.Email, token); err != nil {
			middleware.Logger.ErrorContext(c.UserContext(), "failed to send reset email",
				"user_id", user.ID, "error", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(accepted)
}

// ConfirmPasswordReset godoc
// @Summary      Confirm a password reset
// @Description  Exchanges a valid reset token for a new password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      PasswordResetConfirm  true  "Token and new password"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  models.ErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /api/auth/password-reset/confirm [post]
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req PasswordResetConfirm
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Token is required"))
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	var userID uint
	found, err := cache.GetJSON(c.UserContext(), cache.ResetTokenKey(req.Token), &userID)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	if !found {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired reset token"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	if err := s.userRepo.UpdatePassword(c.UserContext(), userID, string(hashed)); err != nil {
		return respondServiceError(c, err)
	}

	// One-shot token
	cache.Invalidate(c.UserContext(), cache.ResetTokenKey(req.Token))

	middleware.Logger.InfoContext(c.UserContext(), "password reset completed", "user_id", userID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Password updated"})
}
