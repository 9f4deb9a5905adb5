package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultTokenCleanupInterval = 1 * time.Hour
	DefaultStorySweepInterval   = 1 * time.Minute
)

// CleanupService periodically deletes expired verification tokens, signup
// sessions and refresh tokens. Correctness does not depend on it: reads
// lazily expire rows; this keeps the tables from growing.
type CleanupService struct {
	verificationTokens   *VerificationTokenRepository
	verificationSessions *VerificationSessionRepository
	refreshTokens        *RefreshTokenRepository
	interval             time.Duration
}

func NewCleanupService(
	verificationTokens *VerificationTokenRepository,
	verificationSessions *VerificationSessionRepository,
	refreshTokens *RefreshTokenRepository,
) *CleanupService {
	return &CleanupService{
		verificationTokens:   verificationTokens,
		verificationSessions: verificationSessions,
		refreshTokens:        refreshTokens,
		interval:             DefaultTokenCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *CleanupService) runCleanup() {
	tokensDeleted, err := s.verificationTokens.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired verification tokens", "component", "cleanup", "error", err)
	} else if tokensDeleted > 0 {
		slog.Info("deleted expired verification tokens", "component", "cleanup", "count", tokensDeleted)
	}

	sessionsDeleted, err := s.verificationSessions.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired verification sessions", "component", "cleanup", "error", err)
	} else if sessionsDeleted > 0 {
		slog.Info("deleted expired verification sessions", "component", "cleanup", "count", sessionsDeleted)
	}

	refreshDeleted, err := s.refreshTokens.DeleteExpired()
	if err != nil {
		slog.Error("error deleting expired refresh tokens", "component", "cleanup", "error", err)
	} else if refreshDeleted > 0 {
		slog.Info("deleted expired refresh tokens", "component", "cleanup", "count", refreshDeleted)
	}
}

// StorySweeper removes expired stories once per minute. It runs detached from
// request handling; failures are logged, never propagated.
type StorySweeper struct {
	stories  *StoryRepository
	interval time.Duration
}

func NewStorySweeper(stories *StoryRepository) *StorySweeper {
	return &StorySweeper{
		stories:  stories,
		interval: DefaultStorySweepInterval,
	}
}

func (s *StorySweeper) Start(ctx context.Context) {
	slog.Info("starting story sweeper", "component", "story_sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping story sweeper", "component", "story_sweeper")
			return
		case <-ticker.C:
			deleted, err := s.stories.DeleteExpired()
			if err != nil {
				slog.Error("error deleting expired stories", "component", "story_sweeper", "error", err)
			} else if deleted > 0 {
				slog.Info("deleted expired stories", "component", "story_sweeper", "count", deleted)
			}
		}
	}
}
