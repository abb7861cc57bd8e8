package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"flatnest/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// parseID parses a positive uint route parameter, writing a 400 response and
// returning ok=false when it is missing or malformed.
func parseID(c *fiber.Ctx, param string) (uint, bool) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, false
	}
	return uint(id), true
}

// humanizeParam turns a camelCase route param name into words for error
// messages ("flatId" -> "flat id").
func humanizeParam(param string) string {
	words := splitCamel(param)
	return strings.ToLower(strings.Join(words, " "))
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parsePagination reads limit/offset query params with sane defaults.
func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// currentUserID returns the authenticated user's ID from locals.
func currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// isAdmin checks the user's admin flag, preferring the token claim cached in
// locals over a DB round trip.
func (s *Server) isAdmin(c *fiber.Ctx, userID uint) (bool, error) {
	if adm, ok := c.Locals("isAdmin").(bool); ok {
		return adm, nil
	}
	return s.isAdminByUserID(c.UserContext(), userID)
}

// isAdminByUserID resolves the admin flag from the database. Injected into
// services so authorization does not depend on the HTTP layer.
func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var admin bool
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("is_admin").
		Where("id = ?", userID).
		Scan(&admin).Error
	if err != nil {
		return false, err
	}
	return admin, nil
}

// optionalUserID best-effort identifies the caller on public routes. Invalid
// or missing tokens yield 0 (anonymous) instead of an error.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// respondServiceError maps a service-layer error onto the HTTP response.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}
