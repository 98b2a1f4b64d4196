package manageql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"google.golang.org/grpc"

	"github.com/hugr-lab/manageql/auth"
	"github.com/hugr-lab/manageql/flight"
	"github.com/hugr-lab/manageql/source"
)

// NewServer registers the Flight service handlers on grpcServer and returns
// the source backing them. Unless config.SkipDiscovery is set, a discovery
// pass over every object runs first.
//
// Does NOT start the gRPC server; the caller controls its lifecycle:
//
//	grpcServer := grpc.NewServer(manageql.ServerOptions(config)...)
//	src, err := manageql.NewServer(ctx, grpcServer, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
func NewServer(ctx context.Context, grpcServer *grpc.Server, config ServerConfig) (*source.Source, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	logger := configLogger(config)

	src, err := source.New(source.Config{
		Connection: config.Connection,
		Name:       config.SchemaName,
		Typing:     config.Typing,
		Allocator:  config.Allocator,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !config.SkipDiscovery {
		if err := src.Discover(ctx); err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
	}

	catalogName := config.CatalogName
	if catalogName == "" {
		catalogName = DefaultCatalogName
	}
	flight.RegisterFlightServer(grpcServer, flight.NewServer(flight.Config{
		Catalog:   src,
		Name:      catalogName,
		Address:   config.Address,
		BatchSize: config.BatchSize,
		Allocator: config.Allocator,
		Logger:    logger,
	}))

	logger.Info("manageql Flight server registered",
		"catalog", catalogName,
		"schema", src.Name(),
		"tables", src.Registry().Len(),
		"max_message_size", config.MaxMessageSize,
	)
	return src, nil
}

// ServerOptions returns gRPC server options with the logging and panic
// recovery interceptors, bearer authentication when config.Auth is set, and
// the configured message size limits.
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	logger := configLogger(config)
	unary := []grpc.UnaryServerInterceptor{flight.UnaryServerInterceptor(logger)}
	stream := []grpc.StreamServerInterceptor{flight.StreamServerInterceptor(logger)}
	if config.Auth != nil {
		unary = append(unary, auth.UnaryServerInterceptor(config.Auth))
		stream = append(stream, auth.StreamServerInterceptor(config.Auth))
	}
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}
	return opts
}

func configLogger(config ServerConfig) *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	return slog.Default()
}

// Server is a running Flight server created by Start.
type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	src    *source.Source
	logger *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	err      error
}

var (
	runningMu sync.Mutex
	running   *Server
)

// Start listens on config.Address and serves the management objects of
// config.Connection over Flight in the background. Only one server started
// by Start may run at a time; a second call returns ErrAlreadyRunning until
// the first is stopped.
//
// A port of 0 in config.Address picks a free port, which is then also used
// as the public address.
func Start(ctx context.Context, config ServerConfig) (*Server, error) {
	runningMu.Lock()
	defer runningMu.Unlock()
	if running != nil {
		return nil, ErrAlreadyRunning
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if config.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	lis, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", config.Address, err)
	}
	config.Address = lis.Addr().String()

	gs := grpc.NewServer(ServerOptions(config)...)
	src, err := NewServer(ctx, gs, config)
	if err != nil {
		lis.Close()
		return nil, err
	}

	s := &Server{
		grpc:   gs,
		lis:    lis,
		src:    src,
		logger: configLogger(config),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.err = err
			s.logger.Error("flight server stopped", "error", err)
		}
	}()
	running = s

	s.logger.Info("manageql server started", "address", s.Addr())
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Source returns the relational source served.
func (s *Server) Source() *source.Source {
	if s == nil {
		return nil
	}
	return s.src
}

// Wait blocks until the server stops and returns the serve error, if any.
func (s *Server) Wait() error {
	if s == nil {
		return nil
	}
	<-s.done
	return s.err
}

// Stop gracefully stops the server. It is safe to call more than once and
// on a nil Server.
func (s *Server) Stop() error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		s.grpc.GracefulStop()
		<-s.done

		runningMu.Lock()
		if running == s {
			running = nil
		}
		runningMu.Unlock()
		s.logger.Info("manageql server stopped", "address", s.Addr())
	})
	return s.err
}
