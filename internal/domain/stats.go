package domain

import "github.com/shopspring/decimal"

type DashboardStats struct {
	TotalRevenue   decimal.Decimal     `json:"totalRevenue"`
	TotalOrders    int                 `json:"totalOrders"`
	TotalUsers     int                 `json:"totalUsers"`
	TotalProducts  int                 `json:"totalProducts"`
	OrdersByStatus map[OrderStatus]int `json:"ordersByStatus"`
}
