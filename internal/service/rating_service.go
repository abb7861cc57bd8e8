// Package service implements the application's business logic on top of the
// repository layer.
package service

import (
	"context"
	"math"
	"time"

	"flatnest/internal/models"
	"flatnest/internal/observability"
	"flatnest/internal/repository"
)

// Recompute triggers, recorded as the metric label.
const (
	TriggerReviewCreated    = "review_created"
	TriggerReviewUpdated    = "review_updated"
	TriggerReviewDeleted    = "review_deleted"
	TriggerVisibilityToggle = "visibility_toggle"
	TriggerUserDeleted      = "user_deleted"
)

// RatingService recomputes flat rating snapshots from their reviews.
type RatingService struct {
	flatRepo    repository.FlatRepository
	messageRepo repository.MessageRepository
}

// NewRatingService returns a new RatingService.
func NewRatingService(flatRepo repository.FlatRepository, messageRepo repository.MessageRepository) *RatingService {
	return &RatingService{flatRepo: flatRepo, messageRepo: messageRepo}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ComputeRatings derives a rating snapshot from the given messages. Only
// messages that qualify (top level, visible, rated) contribute. Each aspect
// average is taken over the messages that actually scored that aspect, so the
// per-aspect sample sizes are independent. With no qualifying messages the
// zero snapshot is returned.
func ComputeRatings(messages []models.Message) models.RatingSnapshot {
	var snapshot models.RatingSnapshot

	var overallSum, overallCount float64
	type aspectAcc struct {
		sum   float64
		count float64
	}
	var cleanliness, communication, location, accuracy, value aspectAcc

	accumulate := func(acc *aspectAcc, score *int) {
		if score != nil {
			acc.sum += float64(*score)
			acc.count++
		}
	}

	for i := range messages {
		m := &messages[i]
		if !m.QualifiesForAggregation() {
			continue
		}
		overallSum += float64(*m.Rating.Overall)
		overallCount++
		accumulate(&cleanliness, m.Rating.Cleanliness)
		accumulate(&communication, m.Rating.Communication)
		accumulate(&location, m.Rating.Location)
		accumulate(&accuracy, m.Rating.Accuracy)
		accumulate(&value, m.Rating.Value)
	}

	if overallCount == 0 {
		return snapshot
	}

	mean := func(acc aspectAcc) float64 {
		if acc.count == 0 {
			return 0
		}
		return round1(acc.sum / acc.count)
	}

	snapshot.Overall = round1(overallSum / overallCount)
	snapshot.TotalReviews = int(overallCount)
	snapshot.Aspects = models.RatingAspects{
		Cleanliness:   mean(cleanliness),
		Communication: mean(communication),
		Location:      mean(location),
		Accuracy:      mean(accuracy),
		Value:         mean(value),
	}
	return snapshot
}

// RecomputeFlat rebuilds the rating snapshot of a flat from its qualifying
// messages and persists it. A missing flat is a no-op, so recomputes racing a
// flat deletion resolve quietly.
func (s *RatingService) RecomputeFlat(ctx context.Context, flatID uint, trigger string) error {
	start := time.Now()
	defer observability.ObserveRecompute(trigger, start)

	messages, err := s.messageRepo.ListQualifying(ctx, flatID)
	if err != nil {
		return err
	}

	snapshot := ComputeRatings(messages)
	if _, err := s.flatRepo.UpdateRatings(ctx, flatID, snapshot); err != nil {
		return err
	}
	return nil
}
