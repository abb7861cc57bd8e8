package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{NewNotFoundError("Flat", 1), fiber.StatusNotFound},
		{NewValidationError("bad input"), fiber.StatusBadRequest},
		{NewUnauthorizedError("no token"), fiber.StatusUnauthorized},
		{NewForbiddenError("not yours"), fiber.StatusForbidden},
		{NewConflictError("already reviewed"), fiber.StatusConflict},
		{NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{errors.New("plain error"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusForError(tc.err))
	}
}

func TestIsCode(t *testing.T) {
	t.Parallel()

	err := NewConflictError("dup")
	assert.True(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(nil, CodeConflict))

	// wrapped AppErrors still match
	wrapped := fmt.Errorf("create: %w", err)
	assert.True(t, IsCode(wrapped, CodeConflict))
}
