package server

import (
	"io"

	"flatnest/internal/models"
	"flatnest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MessageRequest carries a new top-level message, optionally with a rating
type MessageRequest struct {
	Content string               `json:"content"`
	Rating  *models.ReviewRating `json:"rating"`
}

// ReplyRequest carries a reply to a top-level message
type ReplyRequest struct {
	Content string `json:"content"`
}

// MessageUpdateRequest carries the patchable message fields
type MessageUpdateRequest struct {
	Content *string              `json:"content"`
	Rating  *models.ReviewRating `json:"rating"`
}

// VisibilityRequest toggles a message's hidden flag
type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// GetFlatMessages godoc
// @Summary      List messages for a listing
// @Description  Hidden messages are only included for admin callers
// @Tags         messages
// @Produce      json
// @Param        id   path      int  true  "Flat ID"
// @Success      200  {array}   models.Message
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/flats/{id}/messages [get]
func (s *Server) GetFlatMessages(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	// Route is public; pick up the caller identity when a token is present
	userID := s.optionalUserID(c)

	messages, err := s.messageService.ListMessages(c.UserContext(), id, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(messages)
}

// CreateMessage godoc
// @Summary      Post a message or rated review on a listing
// @Description  A rating makes the message a review; one rated review per
// @Description  author per listing
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int             true  "Flat ID"
// @Param        request  body      MessageRequest  true  "Message payload"
// @Success      201      {object}  models.Message
// @Failure      400      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /api/flats/{id}/messages [post]
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.CreateMessage(c.UserContext(), service.CreateMessageInput{
		AuthorID: currentUserID(c),
		FlatID:   id,
		Content:  req.Content,
		Rating:   req.Rating,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(message)
}

// CreateReply godoc
// @Summary      Reply to a top-level message
// @Description  Replies never carry ratings and cannot be nested further
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int           true  "Parent message ID"
// @Param        request  body      ReplyRequest  true  "Reply payload"
// @Success      201      {object}  models.Message
// @Failure      400      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/messages/{id}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reply, err := s.messageService.CreateReply(c.UserContext(), service.CreateReplyInput{
		AuthorID: currentUserID(c),
		ParentID: id,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// UpdateMessage godoc
// @Summary      Edit a message
// @Description  Author or admin only; rating changes retrigger aggregation
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                   true  "Message ID"
// @Param        request  body      MessageUpdateRequest  true  "Fields to update"
// @Success      200      {object}  models.Message
// @Failure      403      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/messages/{id} [put]
func (s *Server) UpdateMessage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req MessageUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.UpdateMessage(c.UserContext(), service.UpdateMessageInput{
		UserID:    currentUserID(c),
		MessageID: id,
		Content:   req.Content,
		Rating:    req.Rating,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(message)
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Deleting a top-level message removes its replies too
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Message ID"
// @Success      204  "No Content"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/messages/{id} [delete]
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	err := s.messageService.DeleteMessage(c.UserContext(), service.DeleteMessageInput{
		UserID:    currentUserID(c),
		MessageID: id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadMessageAttachment godoc
// @Summary      Attach an image to a message
// @Description  Accepts a multipart file under the "image" field; replaces
// @Description  any previous attachment
// @Tags         messages
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int   true  "Message ID"
// @Param        image  formData  file  true  "Image file"
// @Success      200    {object}  models.Message
// @Failure      400    {object}  models.ErrorResponse
// @Failure      403    {object}  models.ErrorResponse
// @Router       /api/messages/{id}/attachment [post]
func (s *Server) UploadMessageAttachment(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

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

	message, err := s.messageService.SetAttachment(c.UserContext(), service.SetAttachmentInput{
		UserID:      currentUserID(c),
		MessageID:   id,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(message)
}

// SetMessageVisibility godoc
// @Summary      Hide or show a message (admin)
// @Description  Hiding a rated review removes it from the listing's rating
// @Description  aggregate
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                true  "Message ID"
// @Param        request  body      VisibilityRequest  true  "Visibility flag"
// @Success      200      {object}  models.Message
// @Failure      403      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/messages/{id}/visibility [post]
func (s *Server) SetMessageVisibility(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req VisibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.SetVisibility(c.UserContext(), service.SetVisibilityInput{
		UserID:    currentUserID(c),
		MessageID: id,
		Hidden:    req.Hidden,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(message)
}
