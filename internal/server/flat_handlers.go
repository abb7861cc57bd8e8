package server

import (
	"io"
	"time"

	"flatnest/internal/middleware"
	"flatnest/internal/models"
	"flatnest/internal/repository"
	"flatnest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// FlatRequest carries the flat fields for creation
type FlatRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	PropertyType  string  `json:"propertyType"`
	City          string  `json:"city"`
	StreetName    string  `json:"streetName"`
	StreetNumber  string  `json:"streetNumber"`
	AreaSize      float64 `json:"areaSize"`
	YearBuilt     int     `json:"yearBuilt"`
	RentPrice     float64 `json:"rentPrice"`
	DateAvailable string  `json:"dateAvailable"` // YYYY-MM-DD
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     int     `json:"bathrooms"`
	MaxGuests     int     `json:"maxGuests"`
}

// FlatUpdateRequest carries the patchable flat fields
type FlatUpdateRequest struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	PropertyType  *string  `json:"propertyType"`
	City          *string  `json:"city"`
	StreetName    *string  `json:"streetName"`
	StreetNumber  *string  `json:"streetNumber"`
	AreaSize      *float64 `json:"areaSize"`
	YearBuilt     *int     `json:"yearBuilt"`
	RentPrice     *float64 `json:"rentPrice"`
	DateAvailable *string  `json:"dateAvailable"` // YYYY-MM-DD
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     *int     `json:"bathrooms"`
	MaxGuests     *int     `json:"maxGuests"`
}

// FlatListResponse is the paginated listing envelope
type FlatListResponse struct {
	Flats  []models.Flat `json:"flats"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// GetFlats godoc
// @Summary      Browse listings
// @Tags         flats
// @Produce      json
// @Param        city          query     string  false  "City filter"
// @Param        propertyType  query     string  false  "Property type filter"
// @Param        minPrice      query     number  false  "Minimum rent price"
// @Param        maxPrice      query     number  false  "Maximum rent price"
// @Param        minBedrooms   query     int     false  "Minimum bedrooms"
// @Param        limit         query     int     false  "Page size (max 100)"
// @Param        offset        query     int     false  "Offset"
// @Success      200           {object}  FlatListResponse
// @Router       /api/flats [get]
func (s *Server) GetFlats(c *fiber.Ctx) error {
	limit, offset := parsePagination(c)
	filter := repository.FlatFilter{
		City:         c.Query("city"),
		PropertyType: c.Query("propertyType"),
		MinPrice:     c.QueryFloat("minPrice"),
		MaxPrice:     c.QueryFloat("maxPrice"),
		MinBedrooms:  c.QueryInt("minBedrooms"),
		Limit:        limit,
		Offset:       offset,
	}

	flats, total, err := s.flatService.ListFlats(c.UserContext(), filter)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(FlatListResponse{
		Flats:  flats,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetFlat godoc
// @Summary      Get a listing by ID
// @Tags         flats
// @Produce      json
// @Param        id   path      int  true  "Flat ID"
// @Success      200  {object}  models.Flat
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/flats/{id} [get]
func (s *Server) GetFlat(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	flat, err := s.flatService.GetFlat(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flat)
}

// CreateFlat godoc
// @Summary      Create a listing
// @Tags         flats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      FlatRequest  true  "Listing payload"
// @Success      201      {object}  models.Flat
// @Failure      400      {object}  models.ErrorResponse
// @Router       /api/flats [post]
func (s *Server) CreateFlat(c *fiber.Ctx) error {
	var req FlatRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	var dateAvailable time.Time
	if req.DateAvailable != "" {
		parsed, err := time.Parse("2006-01-02", req.DateAvailable)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid date available, expected YYYY-MM-DD"))
		}
		dateAvailable = parsed
	}

	flat, err := s.flatService.CreateFlat(c.UserContext(), service.CreateFlatInput{
		OwnerID:       currentUserID(c),
		Title:         req.Title,
		Description:   req.Description,
		PropertyType:  req.PropertyType,
		City:          req.City,
		StreetName:    req.StreetName,
		StreetNumber:  req.StreetNumber,
		AreaSize:      req.AreaSize,
		YearBuilt:     req.YearBuilt,
		RentPrice:     req.RentPrice,
		DateAvailable: dateAvailable,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		MaxGuests:     req.MaxGuests,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "flat created", "flat_id", flat.ID)
	return c.Status(fiber.StatusCreated).JSON(flat)
}

// UpdateFlat godoc
// @Summary      Update a listing
// @Description  Owner or admin only
// @Tags         flats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                true  "Flat ID"
// @Param        request  body      FlatUpdateRequest  true  "Fields to update"
// @Success      200      {object}  models.Flat
// @Failure      403      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/flats/{id} [put]
func (s *Server) UpdateFlat(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req FlatUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	in := service.UpdateFlatInput{
		UserID:       currentUserID(c),
		FlatID:       id,
		Title:        req.Title,
		Description:  req.Description,
		PropertyType: req.PropertyType,
		City:         req.City,
		StreetName:   req.StreetName,
		StreetNumber: req.StreetNumber,
		AreaSize:     req.AreaSize,
		YearBuilt:    req.YearBuilt,
		RentPrice:    req.RentPrice,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		MaxGuests:    req.MaxGuests,
	}
	if req.DateAvailable != nil {
		parsed, err := time.Parse("2006-01-02", *req.DateAvailable)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid date available, expected YYYY-MM-DD"))
		}
		in.DateAvailable = &parsed
	}

	flat, err := s.flatService.UpdateFlat(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flat)
}

// DeleteFlat godoc
// @Summary      Delete a listing
// @Description  Removes the listing, its images, messages and favorite
// @Description  references. Non-fatal cleanup failures come back as warnings.
// @Tags         flats
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Flat ID"
// @Success      200  {object}  service.CascadeResult
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/flats/{id} [delete]
func (s *Server) DeleteFlat(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	result, err := s.cascadeService.DeleteFlat(c.UserContext(), service.DeleteFlatInput{
		UserID: currentUserID(c),
		FlatID: id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "flat deleted",
		"flat_id", id, "warnings", len(result.Warnings))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  "Flat deleted",
		"warnings": result.Warnings,
	})
}

// UploadFlatImage godoc
// @Summary      Upload a listing image
// @Description  Accepts a multipart file under the "image" field. Optional
// @Description  form fields: description, isMain.
// @Tags         flats
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int   true  "Flat ID"
// @Param        image  formData  file  true  "Image file"
// @Success      200    {object}  models.Flat
// @Failure      400    {object}  models.ErrorResponse
// @Failure      403    {object}  models.ErrorResponse
// @Router       /api/flats/{id}/images [post]
func (s *Server) UploadFlatImage(c *fiber.Ctx) error {
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

	flat, err := s.flatService.UploadImage(c.UserContext(), service.UploadFlatImageInput{
		UserID:      currentUserID(c),
		FlatID:      id,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
		Description: c.FormValue("description"),
		IsMain:      c.FormValue("isMain") == "true",
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flat)
}

// DeleteFlatImage godoc
// @Summary      Delete a listing image
// @Description  If the main image is removed the first remaining image is
// @Description  promoted
// @Tags         flats
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int  true  "Flat ID"
// @Param        imageId  path      int  true  "Image ID"
// @Success      200      {object}  models.Flat
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/flats/{id}/images/{imageId} [delete]
func (s *Server) DeleteFlatImage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	imageID, ok := parseID(c, "imageId")
	if !ok {
		return nil
	}

	flat, err := s.flatService.DeleteImage(c.UserContext(), service.FlatImageRefInput{
		UserID:  currentUserID(c),
		FlatID:  id,
		ImageID: imageID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flat)
}

// SetFlatMainImage godoc
// @Summary      Set the main listing image
// @Tags         flats
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int  true  "Flat ID"
// @Param        imageId  path      int  true  "Image ID"
// @Success      200      {object}  models.Flat
// @Failure      404      {object}  models.ErrorResponse
// @Router       /api/flats/{id}/images/{imageId}/main [put]
func (s *Server) SetFlatMainImage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	imageID, ok := parseID(c, "imageId")
	if !ok {
		return nil
	}

	flat, err := s.flatService.SetMainImage(c.UserContext(), service.FlatImageRefInput{
		UserID:  currentUserID(c),
		FlatID:  id,
		ImageID: imageID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(flat)
}
