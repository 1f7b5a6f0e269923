// Package pantheonhttp exposes a read-only view of the decision core: open
// positions, balances, last decisions, audit history and position plans.
// Nothing here can move money.
package pantheonhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pantheon/internal/council"
	"pantheon/internal/governor"
	"pantheon/internal/ledger"
	"pantheon/internal/logger"
	"pantheon/internal/plan"

	"github.com/gin-gonic/gin"
)

// DecisionReader hands out the latest council decision per symbol.
type DecisionReader interface {
	LastDecision(symbol string) (council.Decision, bool)
}

// ServerConfig carries the server's collaborators.
type ServerConfig struct {
	Addr      string
	Ledger    *ledger.Ledger
	Governor  *governor.Governor
	Plans     *plan.Engine
	Decisions DecisionReader
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("http server requires a ledger")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9984"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/positions", func(c *gin.Context) {
		var open []ledger.Trade
		for _, t := range cfg.Ledger.Trades() {
			if t.IsOpen {
				open = append(open, t)
			}
		}
		c.JSON(http.StatusOK, gin.H{"positions": open})
	})
	api.GET("/trades", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"trades": cfg.Ledger.Trades()})
	})
	api.GET("/balances", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"global_usd": cfg.Ledger.GlobalBalance().StringFixed(2),
			"bist_try":   cfg.Ledger.BISTBalance().StringFixed(2),
		})
	})
	api.GET("/decisions/:symbol", func(c *gin.Context) {
		if cfg.Decisions == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "decision cache not enabled"})
			return
		}
		d, ok := cfg.Decisions.LastDecision(c.Param("symbol"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no decision for symbol"})
			return
		}
		c.JSON(http.StatusOK, d)
	})
	api.GET("/audit/:symbol", func(c *gin.Context) {
		if cfg.Governor == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "governor not enabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		c.JSON(http.StatusOK, gin.H{
			"snapshots": cfg.Governor.RecentSnapshots(c.Param("symbol"), limit),
		})
	})
	api.GET("/plans/:tradeId", func(c *gin.Context) {
		if cfg.Plans == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan engine not enabled"})
			return
		}
		p, ok := cfg.Plans.Get(c.Param("tradeId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no plan for trade"})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
