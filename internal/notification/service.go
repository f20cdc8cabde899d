package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/realtime"
)

const defaultListLimit = 50

type Broadcaster interface {
	Broadcast(room, event string, data any)
}

type Service struct {
	repo   Repository
	rooms  Broadcaster
	logger *zap.Logger
}

func NewService(repo Repository, rooms Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, rooms: rooms, logger: logger}
}

// Notify stores n and pushes it to the customer's room.
func (s *Service) Notify(ctx context.Context, n Notification) (Notification, error) {
	if err := prepare(&n); err != nil {
		return Notification{}, err
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return Notification{}, err
	}
	s.Push(n)
	return n, nil
}

// StoreWithTx persists n inside tx without pushing it. Callers push after
// the transaction commits.
func (s *Service) StoreWithTx(ctx context.Context, tx pgx.Tx, n Notification) (Notification, error) {
	if err := prepare(&n); err != nil {
		return Notification{}, err
	}
	if err := s.repo.CreateWithTx(ctx, tx, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Push sends a stored notification to the customer's room.
func (s *Service) Push(n Notification) {
	if s.rooms != nil {
		s.rooms.Broadcast(realtime.CustomerRoom(n.UserID), realtime.EventNotification, n)
	}
	s.logger.Debug("notification sent",
		zap.String("user_id", n.UserID),
		zap.String("kind", string(n.Kind)),
		zap.String("order_id", n.OrderID),
	)
}

func prepare(n *Notification) error {
	n.UserID = strings.TrimSpace(n.UserID)
	if n.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalid)
	}
	if n.Title == "" && n.Message == "" {
		return fmt.Errorf("%w: title or message is required", ErrInvalid)
	}
	if n.Kind == "" {
		n.Kind = KindGeneral
	}
	n.ID = uuid.NewString()
	n.Read = false
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, defaultListLimit)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
