package usecase

import (
	"context"

	"storefront-backend/internal/domain"
)

type NotificationService struct {
	Repo NotificationRepo
}

func (s *NotificationService) List(ctx context.Context, actor domain.Principal, unreadOnly bool) ([]domain.Notification, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	return s.Repo.ListNotifications(ctx, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Principal, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden("admin only")
	}
	return s.Repo.MarkNotificationRead(ctx, id)
}
