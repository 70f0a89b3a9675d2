// Package http exposes the connection manager and contract gateway over a
// JSON API served by gin.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/internal/idempotency"
)

const (
	shutdownTimeout = 5 * time.Second

	// HeaderIdempotencyKey makes a transaction submission safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed is set on responses served from a previous submission.
	HeaderReplayed = "Idempotent-Replayed"
)

// Option configures a Server.
type Option func(*Server)

// WithIdempotencyStore replaces the in-memory receipt store.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(s *Server) {
		s.receipts = store
	}
}

// Server serves the medchain JSON API
type Server struct {
	manager  *medchain.Manager
	gateway  *medchain.Gateway
	log      *logrus.Entry
	engine   *gin.Engine
	receipts idempotency.Store
}

// NewServer builds the router. log may be nil.
func NewServer(manager *medchain.Manager, gateway *medchain.Gateway, log *logrus.Entry, opts ...Option) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		manager:  manager,
		gateway:  gateway,
		log:      log.WithField("component", "http"),
		receipts: idempotency.NewInMemoryStore(idempotency.DefaultTTL),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.log))

	v1 := engine.Group("/v1")
	v1.GET("/session", s.getSession)
	v1.POST("/session/connect", s.connect)
	v1.POST("/session/disconnect", s.disconnect)

	v1.POST("/batches", s.registerBatch)
	v1.GET("/batches/:batch", s.lookupBatch)
	v1.POST("/batches/:batch/transfer", s.transferBatch)
	v1.POST("/batches/:batch/delivery", s.confirmDelivery)
	v1.GET("/found", s.foundRecord)

	v1.GET("/notifications", s.listNotifications)
	v1.DELETE("/notifications/:id", s.dismissNotification)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Mount serves h for every method under path, e.g. an MCP SSE endpoint.
func (s *Server) Mount(path string, h http.Handler) {
	s.engine.Any(path, gin.WrapH(h))
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ============================================================================
// Responses
// ============================================================================

type networkBody struct {
	ChainID   string `json:"chainId"`
	ChainName string `json:"chainName"`
}

type sessionBody struct {
	State             string      `json:"state"`
	Connected         bool        `json:"connected"`
	Account           string      `json:"account,omitempty"`
	ShortAccount      string      `json:"shortAccount,omitempty"`
	ProviderAvailable bool        `json:"providerAvailable"`
	Network           networkBody `json:"network"`
}

func (s *Server) session() sessionBody {
	snap := s.manager.Snapshot()
	network := s.manager.Network()
	return sessionBody{
		State:             snap.State.String(),
		Connected:         snap.Connected(),
		Account:           snap.Account,
		ShortAccount:      medchain.ShortAddress(snap.Account),
		ProviderAvailable: s.manager.IsProviderAvailable(),
		Network: networkBody{
			ChainID:   network.ChainIDHex(),
			ChainName: network.ChainName,
		},
	}
}

func (s *Server) fail(c *gin.Context, op medchain.Operation, batchNumber uint64, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(op, err), gin.H{
		"error":   toErrorBody(err),
		"message": medchain.DescribeOutcome(op, err, batchNumber, s.manager.Network().ChainName).Message,
	})
}

// submit runs send once per Idempotency-Key and writes the receipt.
func (s *Server) submit(c *gin.Context, op medchain.Operation, batchNumber uint64, body []byte, status int, send func(context.Context) (medchain.TxReceipt, error)) {
	var (
		receipt  medchain.TxReceipt
		replayed bool
		err      error
	)
	if clientKey := c.GetHeader(HeaderIdempotencyKey); clientKey != "" {
		key := idempotency.Key(c.Request.URL.Path, clientKey, body)
		receipt, replayed, err = idempotency.Do(c.Request.Context(), s.receipts, key, send)
	} else {
		receipt, err = send(c.Request.Context())
	}
	if err != nil {
		s.fail(c, op, batchNumber, err)
		return
	}

	if replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.JSON(status, gin.H{
		"receipt": receipt,
		"message": s.message(op, batchNumber),
	})
}

func (s *Server) message(op medchain.Operation, batchNumber uint64) string {
	return medchain.DescribeOutcome(op, nil, batchNumber, s.manager.Network().ChainName).Message
}

// ============================================================================
// Session
// ============================================================================

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.session())
}

func (s *Server) connect(c *gin.Context) {
	if err := s.manager.Connect(c.Request.Context()); err != nil {
		s.fail(c, medchain.OpConnect, 0, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s.session(),
		"message": s.message(medchain.OpConnect, 0),
	})
}

func (s *Server) disconnect(c *gin.Context) {
	if err := s.manager.Disconnect(); err != nil {
		s.fail(c, medchain.OpDisconnect, 0, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s.session(),
		"message": s.message(medchain.OpDisconnect, 0),
	})
}

// ============================================================================
// Batches
// ============================================================================

type registerBatchRequest struct {
	Name         string `json:"name"`
	BatchNumber  uint64 `json:"batchNumber"`
	Manufacturer string `json:"manufacturer"`
}

type transferBatchRequest struct {
	NewHolder string `json:"newHolder"`
}

func (s *Server) registerBatch(c *gin.Context) {
	body, err := c.GetRawData()
	if err == nil {
		err = validateBody(registerBatchSchema, body)
	}
	var req registerBatchRequest
	if err == nil {
		err = decodeBody(body, &req)
	}
	if err != nil {
		s.fail(c, medchain.OpRegisterBatch, 0, err)
		return
	}

	s.submit(c, medchain.OpRegisterBatch, req.BatchNumber, body, http.StatusCreated, func(ctx context.Context) (medchain.TxReceipt, error) {
		return s.gateway.RegisterBatch(ctx, req.Name, req.BatchNumber, req.Manufacturer)
	})
}

func (s *Server) transferBatch(c *gin.Context) {
	batchNumber, err := medchain.ParseBatchNumber(c.Param("batch"))
	if err != nil {
		s.fail(c, medchain.OpTransferBatch, 0, err)
		return
	}

	body, err := c.GetRawData()
	if err == nil {
		err = validateBody(transferBatchSchema, body)
	}
	var req transferBatchRequest
	if err == nil {
		err = decodeBody(body, &req)
	}
	if err != nil {
		s.fail(c, medchain.OpTransferBatch, batchNumber, err)
		return
	}

	s.submit(c, medchain.OpTransferBatch, batchNumber, body, http.StatusOK, func(ctx context.Context) (medchain.TxReceipt, error) {
		return s.gateway.TransferBatch(ctx, batchNumber, req.NewHolder)
	})
}

func (s *Server) confirmDelivery(c *gin.Context) {
	batchNumber, err := medchain.ParseBatchNumber(c.Param("batch"))
	if err != nil {
		s.fail(c, medchain.OpConfirmDeliver, 0, err)
		return
	}

	s.submit(c, medchain.OpConfirmDeliver, batchNumber, nil, http.StatusOK, func(ctx context.Context) (medchain.TxReceipt, error) {
		return s.gateway.ConfirmDelivery(ctx, batchNumber)
	})
}

func (s *Server) lookupBatch(c *gin.Context) {
	batchNumber, err := medchain.ParseBatchNumber(c.Param("batch"))
	if err != nil {
		s.fail(c, medchain.OpLookupBatch, 0, err)
		return
	}

	record, err := s.gateway.LookupBatch(c.Request.Context(), batchNumber)
	if err != nil {
		s.fail(c, medchain.OpLookupBatch, batchNumber, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record":  record,
		"message": s.message(medchain.OpLookupBatch, batchNumber),
	})
}

func (s *Server) foundRecord(c *gin.Context) {
	record, ok := s.gateway.FoundRecord()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Code: "not_found", Message: "no batch looked up yet"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

// ============================================================================
// Notifications
// ============================================================================

func (s *Server) listNotifications(c *gin.Context) {
	notifier := s.manager.Notifier()
	if notifier == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []medchain.Notification{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifier.Active()})
}

func (s *Server) dismissNotification(c *gin.Context) {
	notifier := s.manager.Notifier()
	if notifier == nil || !notifier.Dismiss(c.Param("id")) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
