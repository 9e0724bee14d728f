package api

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/system"
	"github.com/telekom/exception-subscriptions/pkg/version"
)

const defaultShutdownTimeout = 15 * time.Second

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	gin             *gin.Engine
	config          config.Config
	log             *zap.SugaredLogger
	health          Pinger
	shutdownTimeout time.Duration
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool, health Pinger) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.ReqLoggerMiddleware(log.Sugar()),
	)
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			log.Sugar().Warnw("Ignoring invalid trusted proxies", "error", err)
		}
	}

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:             engine,
		config:          cfg,
		log:             log.Sugar().Named("api"),
		health:          health,
		shutdownTimeout: defaultShutdownTimeout,
	}

	engine.GET("healthz", s.healthz)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("api/version", s.getVersion)

	return s
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// SetShutdownTimeout bounds how long Listen waits for in-flight requests.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		s.shutdownTimeout = d
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if !s.config.Server.EnableHTTP2 {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, NextProtos: []string{"http/1.1"}}
		srv.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Starting HTTP server", "address", srv.Addr, "tls", s.tlsEnabled())
		var err error
		if s.tlsEnabled() {
			err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) tlsEnabled() bool {
	return s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != ""
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			system.GetReqLogger(c, s.log).Warnw("Health check failed", "error", err)
			apiresponses.RespondServiceUnavailable(c, "store")
			return
		}
	}
	apiresponses.RespondOK(c, gin.H{"status": "ok"})
}

func (s *Server) getVersion(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}
