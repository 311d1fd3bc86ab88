package usecase

import (
	"context"

	"storefront-backend/internal/domain"
)

type DashboardService struct {
	Store Store
}

func (s *DashboardService) Stats(ctx context.Context, actor domain.Principal) (*domain.DashboardStats, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	byStatus, err := s.Store.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.Store.DeliveredRevenue(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.Store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.Store.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	st := &domain.DashboardStats{
		TotalRevenue:   revenue,
		TotalUsers:     users,
		TotalProducts:  products,
		OrdersByStatus: map[domain.OrderStatus]int{},
	}
	for _, status := range domain.OrderStatuses {
		n := byStatus[status]
		st.OrdersByStatus[status] = n
		st.TotalOrders += n
	}
	return st, nil
}
