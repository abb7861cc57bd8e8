package server

import (
	"io"
	"time"

	"flatnest/internal/middleware"
	"flatnest/internal/models"
	"flatnest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateProfileRequest carries the patchable profile fields
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	BirthDate *string `json:"birthDate"` // YYYY-MM-DD
}

// ChangePasswordRequest carries the current and new password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// GetMyProfile godoc
// @Summary      Get the authenticated user's profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// UpdateMyProfile godoc
// @Summary      Update the authenticated user's profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      UpdateProfileRequest  true  "Fields to update"
// @Success      200      {object}  models.User
// @Failure      400      {object}  models.ErrorResponse
// @Router       /api/users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	in := service.UpdateProfileInput{
		UserID:    currentUserID(c),
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid birth date, expected YYYY-MM-DD"))
		}
		in.BirthDate = &birthDate
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// UploadProfileImage godoc
// @Summary      Upload a profile image
// @Description  Accepts a multipart file under the "image" field
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file  true  "Image file"
// @Success      200    {object}  models.User
// @Failure      400    {object}  models.ErrorResponse
// @Router       /api/users/me/profile-image [post]
func (s *Server) UploadProfileImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	user, err := s.userService.UploadProfileImage(c.UserContext(), service.UploadProfileImageInput{
		UserID:      currentUserID(c),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	}, s.config.DefaultProfileImageID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// ChangePassword godoc
// @Summary      Change the authenticated user's password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ChangePasswordRequest  true  "Passwords"
// @Success      200      {object}  map[string]string
// @Failure      401      {object}  models.ErrorResponse
// @Router       /api/users/me/password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	err := s.userService.ChangePassword(c.UserContext(), service.ChangePasswordInput{
		UserID:          currentUserID(c),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Password updated"})
}

// GetAllUsers godoc
// @Summary      List accounts (admin)
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Page size (max 100)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   models.User
// @Failure      403     {object}  models.ErrorResponse
// @Router       /api/users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	limit, offset := parsePagination(c)
	users, err := s.userService.ListUsers(c.UserContext(), limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(users)
}

// GetUser godoc
// @Summary      Get a user by ID
// @Description  Users can read their own record; admins can read anyone's
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	requesterID := currentUserID(c)
	if id != requesterID {
		admin, err := s.isAdmin(c, requesterID)
		if err != nil {
			return respondServiceError(c, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("You can only view your own account"))
		}
	}

	user, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// DeleteUser godoc
// @Summary      Delete an account
// @Description  Soft deletes the account after cascading all owned flats.
// @Description  Non-fatal cleanup failures are reported as warnings.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  service.CascadeResult
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	result, err := s.cascadeService.DeleteUser(c.UserContext(), service.DeleteUserInput{
		RequesterID: currentUserID(c),
		UserID:      id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user deleted",
		"user_id", id, "warnings", len(result.Warnings))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  "Account deleted",
		"warnings": result.Warnings,
	})
}

// GetFavorites godoc
// @Summary      List the authenticated user's favorite flats
// @Tags         favorites
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.Flat
// @Router       /api/users/me/favorites [get]
func (s *Server) GetFavorites(c *fiber.Ctx) error {
	flats, err := s.userService.ListFavorites(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flats)
}

// AddFavorite godoc
// @Summary      Add a flat to favorites
// @Description  Adding an already favorited flat is a no-op
// @Tags         favorites
// @Produce      json
// @Security     BearerAuth
// @Param        flatId  path      int  true  "Flat ID"
// @Success      204     "No Content"
// @Failure      404     {object}  models.ErrorResponse
// @Router       /api/users/me/favorites/{flatId} [post]
func (s *Server) AddFavorite(c *fiber.Ctx) error {
	flatID, ok := parseID(c, "flatId")
	if !ok {
		return nil
	}
	if err := s.userService.AddFavorite(c.UserContext(), currentUserID(c), flatID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveFavorite godoc
// @Summary      Remove a flat from favorites
// @Description  Removing a flat that is not favorited is a no-op
// @Tags         favorites
// @Produce      json
// @Security     BearerAuth
// @Param        flatId  path  int  true  "Flat ID"
// @Success      204     "No Content"
// @Router       /api/users/me/favorites/{flatId} [delete]
func (s *Server) RemoveFavorite(c *fiber.Ctx) error {
	flatID, ok := parseID(c, "flatId")
	if !ok {
		return nil
	}
	if err := s.userService.RemoveFavorite(c.UserContext(), currentUserID(c), flatID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
