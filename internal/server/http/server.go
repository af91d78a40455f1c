package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/conveyorhq/conveyor/internal/runtime"
	"github.com/conveyorhq/conveyor/internal/server/http/controllers"
	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
	logpkg "github.com/conveyorhq/conveyor/pkg/log"
)

// Server serves the JSON API over plain net/http.
type Server struct {
	rt     *runtime.Runtime
	svc    *pipelinesvc.Service
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds a server with its own pipeline service.
func New(rt *runtime.Runtime) *Server {
	return NewWithService(rt, pipelinesvc.New(rt), rt.Logger())
}

// NewWithService builds a server over a shared pipeline service instance.
func NewWithService(rt *runtime.Runtime, svc *pipelinesvc.Service, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		svc:    svc,
		srv:    &http.Server{Handler: cors(mux)},
		logger: logger.With(logpkg.Component("http")),
	}
	controllers.NewControllerRegistry(rt, svc).RegisterAllRoutes(mux)
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound listener address, if listening.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Close closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
