package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/paymentrequest"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/wallee"
	"github.com/yourorg/checkout-orchestrator/internal/config"
	checkoutcontext "github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
)

// Server exposes checkout sessions to the presentation surface over HTTP.
type Server struct {
	orch      *orchestrator.Orchestrator
	launcher  *wallee.SignalLauncher
	prober    *paymentrequest.CapabilityProber
	journal   *reporting.Journal
	reporter  *reporting.RetrospectiveReporter
	returnURL string
	logger    *zap.Logger
}

func newServer(
	orch *orchestrator.Orchestrator,
	launcher *wallee.SignalLauncher,
	prober *paymentrequest.CapabilityProber,
	journal *reporting.Journal,
	reporter *reporting.RetrospectiveReporter,
	cfg config.Config,
	l *zap.Logger,
) *Server {
	return &Server{
		orch:      orch,
		launcher:  launcher,
		prober:    prober,
		journal:   journal,
		reporter:  reporter,
		returnURL: cfg.Checkout.ReturnURL,
		logger:    l,
	}
}

func setupRouter(srv *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("checkout"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/reports/retrospective", srv.retrospective)

	sessions := r.Group("/sessions")
	sessions.POST("", srv.openSession)
	sessions.GET("/:id", srv.getSession)
	sessions.DELETE("/:id", srv.closeSession)
	sessions.POST("/:id/select", srv.selectMethod)
	sessions.POST("/:id/submit", srv.submit)
	sessions.POST("/:id/launch", srv.launch)
	sessions.POST("/:id/decision", srv.decision)
	sessions.POST("/:id/lightbox-loaded", srv.lightboxLoaded)
	sessions.POST("/:id/back", srv.goBack)
	sessions.POST("/:id/renew", srv.renew)
	return r
}

type openSessionRequest struct {
	PaymentID         string `json:"paymentId" binding:"required"`
	Live              bool   `json:"live"`
	Language          string `json:"language"`
	ReturnURL         string `json:"returnUrl"`
	CancelURL         string `json:"cancelUrl"`
	PaySheetSupported bool   `json:"paySheetSupported"`
}

func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReturnURL == "" {
		req.ReturnURL = s.returnURL
	}

	sess, err := s.orch.Open(c.Request.Context(), checkoutcontext.OpenRequest{
		PaymentID: req.PaymentID,
		Live:      req.Live,
		Language:  req.Language,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}, s.callbacks(req.PaymentID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.prober.Report(sess.ID(), req.PaySheetSupported)

	if err := sess.Initialize(c.Request.Context()); err != nil {
		s.respondError(c, sess, err)
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (s *Server) callbacks(paymentID string) orchestrator.Callbacks {
	l := s.logger.With(zap.String("payment_id", paymentID))
	return orchestrator.Callbacks{
		OnSucceeded: func(p payment.Payment) {
			l.Info("payment succeeded", zap.String("provider", string(p.Provider)))
		},
		OnProcessing: func(p payment.Payment) {
			l.Info("payment processing", zap.String("provider", string(p.Provider)))
		},
		OnError: func(err error) {
			l.Warn("checkout error", zap.Error(err))
		},
	}
}

func (s *Server) session(c *gin.Context) (*orchestrator.Session, bool) {
	sess, ok := s.orch.Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) closeSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.Close()
	s.launcher.Forget(sess.ID())
	s.prober.Forget(sess.ID())
	c.Status(http.StatusNoContent)
}

type selectRequest struct {
	Index *int `json:"index" binding:"required"`
}

func (s *Server) selectMethod(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.SelectMethod(c.Request.Context(), *req.Index); err != nil {
		s.respondError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) submit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var sub adapter.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.Submit(c.Request.Context(), sub); err != nil {
		s.respondError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// launch starts the selected non-direct method and answers right away; the
// outcome shows up in later snapshots once the payer has acted.
func (s *Server) launch(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	if snap.State != orchestrator.StateAwaitPaymentMethodSelection || snap.Selected == nil {
		s.respondError(c, sess, orchestrator.ErrInvalidState)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := sess.Launch(ctx); err != nil {
			s.logger.Debug("launch ended", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, snap)
}

func (s *Server) decision(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var d adapter.Decision
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.orch.Interactions().Resolve(sess.ID(), d); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

type lightboxLoadedRequest struct {
	// Error is what the lightbox reported when starting the payment failed.
	Error string `json:"error"`
}

func (s *Server) lightboxLoaded(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req lightboxLoadedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var startErr error
	if req.Error != "" {
		startErr = errors.New(req.Error)
	}
	if !s.launcher.Loaded(sess.ID(), startErr) {
		c.JSON(http.StatusConflict, gin.H{"error": "no lightbox was injected for this session"})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) goBack(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.GoBack(); err != nil {
		s.respondError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) renew(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.RenewPayment(c.Request.Context()); err != nil {
		s.respondError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) retrospective(c *gin.Context) {
	report, err := s.reporter.GenerateRetrospective(s.journal.Entries())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) respondError(c *gin.Context, sess *orchestrator.Session, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, orchestrator.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, orchestrator.ErrUnknownMethod):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrInvalidState),
		errors.Is(err, orchestrator.ErrSelectionLocked),
		errors.Is(err, orchestrator.ErrRenewalNotOffered):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error(), "session": sess.Snapshot()})
}
