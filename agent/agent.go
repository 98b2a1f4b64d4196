// Package agent serves a management connection over HTTP/JSON so that it
// can be attached to from another process with mgmt/remote.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hugr-lab/manageql/auth"
	"github.com/hugr-lab/manageql/mgmt"
)

// Routes served by the agent.
const (
	PathNames    = "/v1/names"
	PathDescribe = "/v1/describe"
	PathRead     = "/v1/read"
	PathHealth   = "/v1/health"
)

// Config configures an agent.
type Config struct {
	// Connection to expose. Required.
	Connection mgmt.Connection

	// Token, when set, must be sent as a bearer token on every request
	// except the health check.
	Token string

	Logger *slog.Logger
}

// Agent is an HTTP endpoint exposing a management connection.
type Agent struct {
	conn   mgmt.Connection
	auth   auth.Authenticator
	logger *slog.Logger
	router *gin.Engine
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Connection == nil {
		return nil, errors.New("agent: connection is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	a := &Agent{
		conn:   cfg.Connection,
		logger: logger,
		router: gin.New(),
	}
	if cfg.Token != "" {
		a.auth = auth.StaticToken(cfg.Token, "agent")
	}
	a.router.Use(gin.Recovery(), a.logRequests())

	a.router.GET(PathHealth, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := a.router.Group("/", a.authorize())
	api.GET(PathNames, a.getNames)
	api.GET(PathDescribe, a.getDescribe)
	api.POST(PathRead, a.postRead)
	return a, nil
}

// Handler returns the HTTP handler of the agent.
func (a *Agent) Handler() http.Handler { return a.router }

// Serve accepts connections on lis until ctx is done, then shuts down
// gracefully.
func (a *Agent) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()

	a.logger.Info("agent listening", "address", lis.Addr().String())
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (a *Agent) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, lis)
}

func (a *Agent) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("agent request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"identity", auth.IdentityFromContext(c.Request.Context()),
			"duration", time.Since(start),
		)
	}
}

func (a *Agent) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.auth == nil {
			return
		}
		token, err := auth.TokenFromAuthorizationHeader(c.GetHeader("Authorization"))
		if err == nil {
			var ctx context.Context
			ctx, err = auth.ValidateToken(c.Request.Context(), token, a.auth)
			if err == nil {
				c.Request = c.Request.WithContext(ctx)
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: err.Error()})
	}
}
