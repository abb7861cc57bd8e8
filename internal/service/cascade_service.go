package service

import (
	"context"
	"fmt"

	"flatnest/internal/config"
	"flatnest/internal/imagestore"
	"flatnest/internal/models"
	"flatnest/internal/observability"
	"flatnest/internal/repository"
)

// Cascade metric outcomes.
const (
	outcomeSuccess  = "success"
	outcomeWarnings = "success_with_warnings"
	outcomeFailure  = "failure"
)

// CascadeResult reports a completed deletion cascade. Warnings carry the
// non-fatal step failures that were skipped over.
type CascadeResult struct {
	Warnings []string `json:"warnings,omitempty"`
}

// CascadeService coordinates the multi-step deletion flows for flats and
// users. Dependent records go first and the entity record last. Collaborator
// failures on non-mandatory steps are downgraded to warnings.
type CascadeService struct {
	flatRepo    repository.FlatRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	images      imagestore.Client
	cfg         *config.Config
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type DeleteFlatInput struct {
	UserID uint
	FlatID uint
}

type DeleteUserInput struct {
	RequesterID uint
	UserID      uint
}

func NewCascadeService(
	flatRepo repository.FlatRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	images imagestore.Client,
	cfg *config.Config,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CascadeService {
	return &CascadeService{
		flatRepo:    flatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		images:      images,
		cfg:         cfg,
		isAdmin:     isAdmin,
	}
}

func (s *CascadeService) requireSelfOrAdmin(ctx context.Context, targetID, requesterID uint, what string) error {
	if targetID == requesterID {
		return nil
	}
	if s.isAdmin != nil {
		admin, err := s.isAdmin(ctx, requesterID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewForbiddenError("You cannot delete this " + what)
}

// deleteFlatRecord runs the flat cascade steps in order: images, messages,
// favorites, then the record itself. The first three collect warnings; the
// record delete is mandatory and escalates.
func (s *CascadeService) deleteFlatRecord(ctx context.Context, flat *models.Flat, log *observability.CascadeLogger, warnings *[]string) error {
	warn := func(step string, err error) {
		observability.CascadeStepFailures.WithLabelValues("flat", step).Inc()
		log.LogStepFailure(ctx, step, err)
		*warnings = append(*warnings, fmt.Sprintf("%s: %v", step, err))
	}

	// Step 1: release stored images
	images, err := s.flatRepo.ListImages(ctx, flat.ID)
	if err != nil {
		warn("release_images", err)
	} else {
		for _, img := range images {
			if s.images == nil {
				continue
			}
			if err := s.images.Delete(ctx, img.PublicID); err != nil {
				warn("release_images", models.NewDependencyFailure("release_images", err))
			}
		}
		if err := s.flatRepo.DeleteImagesByFlat(ctx, flat.ID); err != nil {
			warn("release_images", err)
		}
	}
	log.LogStep(ctx, "release_images", map[string]any{"flat_id": flat.ID, "count": len(images)})

	// Step 2: delete all messages, hidden ones included. Their attachment
	// assets are released first, while the rows still name them.
	attachments, err := s.messageRepo.ListAttachmentIDs(ctx, flat.ID)
	if err != nil {
		warn("delete_messages", err)
	} else if s.images != nil {
		for _, publicID := range attachments {
			if err := s.images.Delete(ctx, publicID); err != nil {
				warn("delete_messages", models.NewDependencyFailure("release_attachments", err))
			}
		}
	}
	if err := s.messageRepo.DeleteByFlat(ctx, flat.ID); err != nil {
		warn("delete_messages", err)
	} else {
		log.LogStep(ctx, "delete_messages", map[string]any{"flat_id": flat.ID, "attachments": len(attachments)})
	}

	// Step 3: drop the flat from every favorites list
	if err := s.userRepo.RemoveFlatFromAllFavorites(ctx, flat.ID); err != nil {
		warn("clear_favorites", err)
	} else {
		log.LogStep(ctx, "clear_favorites", map[string]any{"flat_id": flat.ID})
	}

	// Step 4: the flat record itself. Mandatory.
	if err := s.flatRepo.Delete(ctx, flat.ID); err != nil {
		log.LogStepFailure(ctx, "delete_record", err)
		return err
	}
	log.LogStep(ctx, "delete_record", map[string]any{"flat_id": flat.ID})
	return nil
}

func recordOutcome(entity string, warnings []string, failed bool) {
	switch {
	case failed:
		observability.CascadesTotal.WithLabelValues(entity, outcomeFailure).Inc()
	case len(warnings) > 0:
		observability.CascadesTotal.WithLabelValues(entity, outcomeWarnings).Inc()
	default:
		observability.CascadesTotal.WithLabelValues(entity, outcomeSuccess).Inc()
	}
}

// DeleteFlat removes a listing and everything hanging off it. Only the owner
// or an admin may run it; authorization is checked before any mutation.
func (s *CascadeService) DeleteFlat(ctx context.Context, in DeleteFlatInput) (*CascadeResult, error) {
	flat, err := s.flatRepo.GetByID(ctx, in.FlatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSelfOrAdmin(ctx, flat.OwnerID, in.UserID, "flat"); err != nil {
		return nil, err
	}

	log := observability.NewCascadeLogger("flat")
	result := &CascadeResult{}

	if err := s.deleteFlatRecord(ctx, flat, log, &result.Warnings); err != nil {
		recordOutcome("flat", result.Warnings, true)
		return nil, err
	}

	recordOutcome("flat", result.Warnings, false)
	return result, nil
}

// DeleteUser soft deletes an account. Every owned flat is cascaded first, then
// the profile image is released (unless it is the configured default), then the
// record is flagged deleted and its image fields reset to the default sentinel.
// If the field reset fails the soft delete is reverted so the account does not
// end up half deleted.
func (s *CascadeService) DeleteUser(ctx context.Context, in DeleteUserInput) (*CascadeResult, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSelfOrAdmin(ctx, user.ID, in.RequesterID, "account"); err != nil {
		return nil, err
	}

	log := observability.NewCascadeLogger("user")
	result := &CascadeResult{}

	flats, err := s.flatRepo.ListByOwner(ctx, user.ID)
	if err != nil {
		recordOutcome("user", result.Warnings, true)
		return nil, err
	}
	for i := range flats {
		if err := s.deleteFlatRecord(ctx, &flats[i], log, &result.Warnings); err != nil {
			// A mandatory flat step failed; the account stays untouched.
			recordOutcome("user", result.Warnings, true)
			return nil, err
		}
	}

	if s.images != nil && user.ProfileImageID != "" && user.ProfileImageID != s.cfg.DefaultProfileImageID {
		if err := s.images.Delete(ctx, user.ProfileImageID); err != nil {
			observability.CascadeStepFailures.WithLabelValues("user", "release_profile_image").Inc()
			log.LogStepFailure(ctx, "release_profile_image", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("release_profile_image: %v", err))
		} else {
			log.LogStep(ctx, "release_profile_image", map[string]any{"user_id": user.ID})
		}
	}

	if err := s.userRepo.SoftDelete(ctx, user.ID); err != nil {
		recordOutcome("user", result.Warnings, true)
		return nil, err
	}
	log.LogStep(ctx, "soft_delete", map[string]any{"user_id": user.ID})

	if err := s.userRepo.ResetProfileImage(ctx, user.ID, s.cfg.DefaultProfileImageURL, s.cfg.DefaultProfileImageID); err != nil {
		if revertErr := s.userRepo.RevertSoftDelete(ctx, user.ID); revertErr != nil {
			log.LogRevertFailure(ctx, user.ID, revertErr)
			recordOutcome("user", result.Warnings, true)
			return nil, models.NewConsistencyRevertError(fmt.Errorf("reset failed: %v; revert failed: %w", err, revertErr))
		}
		recordOutcome("user", result.Warnings, true)
		return nil, models.NewInternalError(fmt.Errorf("user deletion rolled back, profile image reset failed: %w", err))
	}
	log.LogStep(ctx, "reset_profile_image", map[string]any{"user_id": user.ID})

	recordOutcome("user", result.Warnings, false)
	return result, nil
}
