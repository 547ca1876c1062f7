package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iqoption/crashcollector/collector/cfg"
	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/collector/service"
)

// BindError means the listener could not be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("can't listen on %s: %s", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

var ErrStarted = errors.New("server already started")

type hijackerKey struct{}

// Server is the crash collection endpoint. It is started once and stopped
// once; a stopped server can't be restarted.
type Server struct {
	engine  *gin.Engine
	conf    cfg.Config
	service *service.CollectorService
	metrics *metrics.Metrics

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	started  bool
	stopOnce sync.Once
	stopErr  error
}

func NewServer(conf cfg.Config, svc *service.CollectorService, m *metrics.Metrics) (*Server, error) {
	if m == nil {
		m = svc.Metrics()
	}
	if dir := conf.DumpsDir(); len(dir) != 0 {
		if err := os.MkdirAll(dir, 0777); err != nil {
			log.WithError(err).Error("Can't create dumps directory")
			return nil, errors.Wrap(err, 0)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &Server{
		engine:  gin.New(),
		conf:    conf,
		service: svc,
		metrics: m,
	}
	srv.engine.Use(gin.Recovery(), requestLogger(), srv.withMetrics())
	srv.applyRoutes()
	return srv, nil
}

func (m *Server) applyRoutes() {
	m.engine.POST("/", m.PostCrash())
	m.engine.POST("/submit", m.PostCrash())
	m.engine.GET("/crashes", m.GetCrashes())
	m.engine.GET("/crashes/latest", m.GetLatestCrash())
	m.engine.GET("/crashes/:id", m.GetCrash())
	m.engine.GET("/health", m.GetHealth())
	if m.conf.MonitoringEnable() {
		m.engine.GET("/metrics", gin.WrapH(m.metrics.Handler()))
	}

	// Reporters may be configured with any submit path.
	post := m.PostCrash()
	m.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			post(c)
			return
		}
		m.setNotFound("unknown endpoint", c)
	})
}

// ServeHTTP makes the raw connection reachable from handlers so an upload
// can close its socket before waiters are notified.
func (m *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if hj, ok := w.(http.Hijacker); ok {
		r = r.WithContext(context.WithValue(r.Context(), hijackerKey{}, hj))
	}
	m.engine.ServeHTTP(w, r)
}

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (m *Server) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrStarted
	}

	addres := net.JoinHostPort(m.conf.Host(), strconv.FormatUint(uint64(m.conf.Port()), 10))
	if !m.conf.AllowRemote() && !cfg.IsLoopback(m.conf.Host()) {
		return errors.Wrap(&BindError{Addr: addres, Err: errors.New("not a loopback address")}, 0)
	}

	ln, err := net.Listen("tcp", addres)
	if err != nil {
		return errors.Wrap(&BindError{Addr: addres, Err: err}, 0)
	}

	m.started = true
	m.listener = ln
	m.http = &http.Server{
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("address", ln.Addr().String()).Info("Run on")

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Collector server error")
		}
	}(m.http)
	return nil
}

// Port returns the bound port, or 0 before Start.
func (m *Server) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listener == nil {
		return 0
	}
	return m.listener.Addr().(*net.TCPAddr).Port
}

// URL is the submit URL a crash reporter should be configured with.
func (m *Server) URL() string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(m.conf.Host(), strconv.Itoa(m.Port())))
}

// Stop closes the listener and lets in-flight uploads finish within ctx.
// Pending waiters are left unresolved. Calling Stop again is a no-op.
func (m *Server) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		srv := m.http
		m.started = true
		m.mu.Unlock()

		if srv == nil {
			return
		}
		log.Info("Stopping collector server")
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			m.stopErr = errors.Wrap(err, 0)
		}
	})
	return m.stopErr
}

func (m *Server) Service() *service.CollectorService {
	return m.service
}
