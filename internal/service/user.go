package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
)

type UserRepository interface {
	Save(ctx context.Context, user *entities.User) (bool, error)
}

type UserService struct {
	repository UserRepository
	logger     *zap.Logger
}

// NewUserService returns a service that records bot users. A nil repository turns it
// into a no-op.
func NewUserService(repository UserRepository, logger *zap.Logger) *UserService {
	return &UserService{repository: repository, logger: logger}
}

func (s *UserService) EnsureUser(ctx context.Context, userID, chatID int64, username string) error {
	if s.repository == nil {
		return nil
	}

	created, err := s.repository.Save(ctx, entities.NewUser(userID, chatID, username))
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("new user", zap.Int64("user_id", userID), zap.Int64("chat_id", chatID))
	}
	return nil
}
