package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const maxContactListLimit = 200

var ErrInvalidContactMessage = errors.New("invalid contact message")

// ContactInput is a contact form submission
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactService records contact form messages
type ContactService interface {
	Submit(ctx context.Context, in ContactInput) (*domain.ContactMessage, error)
	List(ctx context.Context, limit int) ([]*domain.ContactMessage, error)
}

type contactService struct {
	repo   repository.ContactRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewContactService creates a new instance of ContactService
func NewContactService(repo repository.ContactRepository, logger *zap.Logger) ContactService {
	return &contactService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a message
func (s *contactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactMessage, error) {
	msg := &domain.ContactMessage{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: s.now(),
	}

	switch {
	case msg.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidContactMessage)
	case msg.Subject == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidContactMessage)
	case msg.Message == "":
		return nil, fmt.Errorf("%w: message is required", ErrInvalidContactMessage)
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidContactMessage)
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save contact message: %w", err)
	}

	s.logger.Info("Contact message received",
		zap.String("message_id", msg.ID.String()),
		zap.String("subject", msg.Subject),
	)

	return msg, nil
}

// List returns the newest messages. limit is clamped to [1, 200].
func (s *contactService) List(ctx context.Context, limit int) ([]*domain.ContactMessage, error) {
	if limit <= 0 || limit > maxContactListLimit {
		limit = maxContactListLimit
	}

	messages, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return messages, nil
}
