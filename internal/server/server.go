package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/config"
	"storefront-backend/internal/domain"
	"storefront-backend/internal/usecase"
)

type Services struct {
	Auth          *usecase.AuthService
	Orders        *usecase.OrderService
	Coupons       *usecase.CouponService
	Catalog       *usecase.CatalogService
	Notifications *usecase.NotificationService
	Dashboard     *usecase.DashboardService
}

type Server struct {
	cfg    config.Config
	svc    Services
	log    logrus.FieldLogger
	router *gin.Engine
}

const (
	ctxPrincipal = "principal"
	ctxRequestID = "requestId"
)

func New(cfg config.Config, svc Services, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		log:    log,
		router: gin.New(),
	}
	s.router.Use(s.requestID, s.accessLog, gin.CustomRecovery(s.recover), s.cors)
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		s.json(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api", s.authenticate)

	api.POST("/orders", s.handleCreateOrder)
	api.GET("/orders/mine", s.handleListMyOrders)
	api.GET("/orders/:id", s.handleGetOrder)
	api.PATCH("/orders/:id", s.handleUpdateShipping)
	api.POST("/orders/:id/cancel", s.handleCancelOrder)
	api.POST("/coupons/apply", s.handleApplyCoupon)
	api.GET("/products", s.handleListProducts)
	api.GET("/products/:id", s.handleGetProduct)

	admin := api.Group("/admin")
	admin.GET("/orders", s.handleListAllOrders)
	admin.PATCH("/orders/:id/status", s.handleUpdateStatus)
	admin.POST("/coupons", s.handleCreateCoupon)
	admin.GET("/coupons", s.handleListCoupons)
	admin.POST("/products", s.handleCreateProduct)
	admin.GET("/notifications", s.handleListNotifications)
	admin.PATCH("/notifications/:id/read", s.handleMarkNotificationRead)
	admin.GET("/dashboard", s.handleDashboard)
}

func (s *Server) cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = c.GetHeader("Idempotency-Key")
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(ctxRequestID, id)
	c.Header("X-Request-ID", id)
	c.Next()
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.WithFields(logrus.Fields{
		"method":    c.Request.Method,
		"path":      c.FullPath(),
		"status":    c.Writer.Status(),
		"latencyMs": time.Since(start).Milliseconds(),
		"requestId": c.GetString(ctxRequestID),
	}).Info("request")
}

func (s *Server) recover(c *gin.Context, v any) {
	s.log.WithField("panic", v).WithField("requestId", c.GetString(ctxRequestID)).Error("handler panicked")
	s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
}

func (s *Server) authenticate(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		s.err(c, http.StatusUnauthorized, "Unauthenticated", "bearer token required")
		return
	}
	p, err := s.svc.Auth.Verify(strings.TrimSpace(token))
	if err != nil {
		s.err(c, http.StatusUnauthorized, "Unauthenticated", err.Error())
		return
	}
	c.Set(ctxPrincipal, p)
	c.Next()
}

func principal(c *gin.Context) domain.Principal {
	p, _ := c.Get(ctxPrincipal)
	pr, _ := p.(domain.Principal)
	return pr
}

// fail maps an error kind to its status and code. Anything unrecognised is
// logged and reported as an opaque server error.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		validation  domain.ErrValidation
		notFound    domain.ErrNotFound
		forbidden   domain.ErrForbidden
		badState    domain.ErrInvalidState
		badStatus   domain.ErrInvalidStatus
		duplicate   domain.ErrDuplicateOrder
		invalidCode domain.ErrInvalidCoupon
		expired     domain.ErrCouponExpired
		limit       domain.ErrUsageLimitReached
		used        domain.ErrAlreadyUsed
		belowMin    domain.ErrBelowMinimum
	)
	switch {
	case errors.As(err, &validation):
		s.err(c, http.StatusBadRequest, "ValidationError", err.Error())
	case errors.As(err, &notFound):
		s.err(c, http.StatusNotFound, "NotFound", err.Error())
	case errors.As(err, &forbidden):
		s.err(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &badState):
		s.err(c, http.StatusBadRequest, "InvalidState", err.Error())
	case errors.As(err, &badStatus):
		s.err(c, http.StatusBadRequest, "InvalidStatus", err.Error())
	case errors.As(err, &duplicate):
		s.err(c, http.StatusConflict, "DuplicateOrder", err.Error())
	case errors.As(err, &invalidCode):
		s.err(c, http.StatusBadRequest, "InvalidCoupon", err.Error())
	case errors.As(err, &expired):
		s.err(c, http.StatusBadRequest, "CouponExpired", err.Error())
	case errors.As(err, &limit):
		s.err(c, http.StatusBadRequest, "UsageLimitReached", err.Error())
	case errors.As(err, &used):
		s.err(c, http.StatusBadRequest, "AlreadyUsed", err.Error())
	case errors.As(err, &belowMin):
		s.err(c, http.StatusBadRequest, "BelowMinimum", err.Error())
	case errors.Is(err, usecase.ErrUnauthenticated):
		s.err(c, http.StatusUnauthorized, "Unauthenticated", err.Error())
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"path":      c.FullPath(),
			"requestId": c.GetString(ctxRequestID),
		}).Error("request failed")
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": c.GetString(ctxRequestID),
		},
	})
}

func (s *Server) json(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.err(c, http.StatusBadRequest, "ValidationError", "invalid json")
		return false
	}
	return true
}
