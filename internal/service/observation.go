package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/dto"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/metrics"
	"rivermonitor/internal/model"
	"rivermonitor/internal/query"
	"rivermonitor/internal/repository"
	"rivermonitor/internal/service/storage"
	"rivermonitor/internal/validation"
)

// Broadcaster receives live feed messages. Broadcast must not block.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// ObservationService stores uploads and answers reads. It keeps the image
// directory and the database in step: an image becomes visible only together
// with its row.
type ObservationService struct {
	repo   repository.ObservationRepository
	store  *storage.ImageStore
	feed   Broadcaster
	clock  *Clock
	logger *logger.Logger
}

// NewObservationService seeds the clock from the newest stored timestamp so
// restarts never reuse a second. feed may be nil.
func NewObservationService(ctx context.Context, repo repository.ObservationRepository, store *storage.ImageStore, feed Broadcaster, logger *logger.Logger) (*ObservationService, error) {
	latest, err := repo.LatestTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed clock: %w", err)
	}
	return &ObservationService{
		repo:   repo,
		store:  store,
		feed:   feed,
		clock:  NewClock(latest),
		logger: logger,
	}, nil
}

// Submit persists an accepted upload: the image is staged, the row inserted,
// the image promoted to its public name and only then the row committed.
func (s *ObservationService) Submit(ctx context.Context, acc *validation.Accepted) (*model.Observation, error) {
	staged, err := s.store.Stage(acc.Image)
	if err != nil {
		return nil, err
	}

	obs := acc.Observation()
	obs.Timestamp = time.Unix(s.clock.Next(), 0).UTC()
	ts := obs.Unix()

	promoted := false
	err = s.repo.Insert(ctx, obs, func() error {
		if _, err := s.store.Promote(staged, ts); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	if err != nil {
		s.store.Discard(staged)
		if promoted {
			if rmErr := s.store.Remove(ts); rmErr != nil {
				s.logger.Error("Failed to remove image %d after failed commit: %v", ts, rmErr)
			}
		}
		return nil, err
	}

	s.logger.Info("Stored observation %d for river %q (level %g, %d points)", ts, obs.RiverName, obs.EstLevel, len(obs.Points))
	s.publish(obs)
	return obs, nil
}

// Retrieve returns the observations in w, or the latest one when w is open.
func (s *ObservationService) Retrieve(ctx context.Context, w query.Window) ([]model.Observation, error) {
	observations, err := s.repo.Find(ctx, w)
	if err != nil {
		return nil, err
	}
	metrics.ObservationsReturned.Observe(float64(len(observations)))
	return observations, nil
}

// Get returns the observation stored at ts.
func (s *ObservationService) Get(ctx context.Context, ts int64) (*model.Observation, error) {
	obs, err := s.repo.GetByTimestamp(ctx, ts)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, apperror.New(apperror.KindNotFound, "service.Get", fmt.Errorf("no observation at %d", ts))
	}
	return obs, nil
}

// ImagePath returns the file of the image stored at ts.
func (s *ObservationService) ImagePath(ts int64) (string, error) {
	path, ok := s.store.Path(ts)
	if !ok {
		return "", apperror.New(apperror.KindNotFound, "service.ImagePath", fmt.Errorf("no image at %d", ts))
	}
	return path, nil
}

func (s *ObservationService) publish(obs *model.Observation) {
	if s.feed == nil {
		return
	}
	message, err := json.Marshal(dto.Event{
		Type: dto.EventObservationCreated,
		Data: dto.NewObservationResponse(obs),
	})
	if err != nil {
		s.logger.Warning("Failed to encode live feed event: %v", err)
		return
	}
	s.feed.Broadcast(message)
}
