package server

import (
	"context"
	"fmt"
	"net"

	"github.com/biogit/biogit/auth"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Config holds a Server's runtime settings (spec.md §5, §9's "runtime-
// configurable pool size" open question).
type Config struct {
	ListenAddr  string
	ReposRoot   string
	WorkerCount int64 // max concurrent sessions; <= 0 means DefaultWorkerCount
	TokenSecret []byte
}

// DefaultWorkerCount is used when Config.WorkerCount is unset. spec.md §9
// flags the source's apparent min(1,1) default as almost certainly an
// artifact of single-threaded testing rather than intent; biogit instead
// defaults to a small but real pool and makes it configurable.
const DefaultWorkerCount = 16

// Server accepts connections and dispatches them to a bounded pool of
// concurrently served sessions (spec.md §5's "pool of N worker threads").
// Unlike the spec's event-loop-per-worker model, biogit's pool is a
// semaphore bounding one goroutine per session — each session is
// logically single-threaded (all its state is touched only from its own
// goroutine) which preserves the "no locking needed per-session"
// property spec.md §5 asks for, via Go's scheduler instead of a hand
// rolled event loop.
type Server struct {
	cfg      Config
	sem      *semaphore.Weighted
	signer   *auth.Signer
	registry *auth.Registry
	log      *logrus.Entry
}

// New constructs a Server. registry may be shared across multiple Servers
// (spec.md §5: "shared across workers ... protect with a mutex" — auth.Registry
// already does its own locking).
func New(cfg Config, registry *auth.Registry) *Server {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	logger := logrus.New()
	return &Server{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(workers),
		signer:   auth.NewSigner(cfg.TokenSecret),
		registry: registry,
		log:      logger.WithField("component", "server"),
	}
}

// Serve listens on cfg.ListenAddr and serves connections until ctx is
// canceled or the listener errors.
func (srv *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", srv.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", srv.cfg.ListenAddr, err)
	}
	defer ln.Close()
	return srv.ServeListener(ctx, ln)
}

// ServeListener serves connections accepted from ln until ctx is canceled
// or the listener errors, letting callers (tests, primarily) control
// listener creation and learn its bound address before serving starts.
func (srv *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	srv.log.WithField("addr", ln.Addr().String()).Info("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		if err := srv.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		go func() {
			defer srv.sem.Release(1)
			sess := newSession(conn, srv.cfg.ReposRoot, srv.signer, srv.registry, srv.log)
			sess.Serve()
		}()
	}
}
