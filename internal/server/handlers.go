package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-backend/internal/usecase"
)

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req usecase.CreateOrderInput
	if !s.bind(c, &req) {
		return
	}
	o, err := s.svc.Orders.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusCreated, o)
}

func (s *Server) handleListMyOrders(c *gin.Context) {
	orders, err := s.svc.Orders.ListMine(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, orders)
}

func (s *Server) handleListAllOrders(c *gin.Context) {
	orders, err := s.svc.Orders.ListAll(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.svc.Orders.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, o)
}

// Unknown body fields are dropped by the decoder, so only shipping and notes
// can reach the service.
func (s *Server) handleUpdateShipping(c *gin.Context) {
	var req usecase.UpdateShippingInput
	if !s.bind(c, &req) {
		return
	}
	o, err := s.svc.Orders.UpdateShipping(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, o)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	o, err := s.svc.Orders.CancelOwn(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, o)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if !s.bind(c, &req) {
		return
	}
	o, err := s.svc.Orders.UpdateStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, o)
}

type applyCouponReq struct {
	Code       string          `json:"code"`
	OrderValue decimal.Decimal `json:"orderValue"`
}

func (s *Server) handleApplyCoupon(c *gin.Context) {
	var req applyCouponReq
	if !s.bind(c, &req) {
		return
	}
	p := principal(c)
	discount, err := s.svc.Coupons.Validate(c.Request.Context(), req.Code, req.OrderValue, p.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, gin.H{
		"code":       req.Code,
		"discount":   discount,
		"finalValue": req.OrderValue.Sub(discount),
	})
}

func (s *Server) handleCreateCoupon(c *gin.Context) {
	var req usecase.CreateCouponInput
	if !s.bind(c, &req) {
		return
	}
	cp, err := s.svc.Coupons.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusCreated, cp)
}

func (s *Server) handleListCoupons(c *gin.Context) {
	list, err := s.svc.Coupons.List(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, list)
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var req usecase.CreateProductInput
	if !s.bind(c, &req) {
		return
	}
	p, err := s.svc.Catalog.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusCreated, p)
}

func (s *Server) handleListProducts(c *gin.Context) {
	list, err := s.svc.Catalog.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, list)
}

func (s *Server) handleGetProduct(c *gin.Context) {
	p, err := s.svc.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, p)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	unread := c.Query("unread") == "true" || c.Query("unread") == "1"
	list, err := s.svc.Notifications.List(c.Request.Context(), principal(c), unread)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, list)
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	if err := s.svc.Notifications.MarkRead(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDashboard(c *gin.Context) {
	st, err := s.svc.Dashboard.Stats(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.json(c, http.StatusOK, st)
}
