package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"linkrelay-server/internal/relay"
)

const (
	defaultPort = 8887

	// Connections silent for longer than this get closed by the reaper.
	idleTimeout    = 10 * time.Minute
	reaperInterval = time.Minute
)

type Server struct {
	port      int
	registry  *relay.Registry
	directory *relay.Directory
	rooms     *relay.Manager

	rateLimiter *RateLimiter
	activity    *ActivityTracker

	done chan struct{}
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = defaultPort
	}

	s := &Server{
		port:        port,
		registry:    relay.NewRegistry(),
		directory:   relay.NewDirectory(),
		rooms:       relay.NewManager(),
		rateLimiter: NewRateLimiter(10, time.Second),
		activity:    NewActivityTracker(),
		done:        make(chan struct{}),
	}

	// Background task: close connections that have gone silent.
	go s.reapIdleConnections()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// Shutdown closes every live client connection. Each close unwinds that
// connection's handler, which runs the normal disconnect cleanup, so no
// special state teardown is needed here.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)

	for _, conn := range s.registry.Conns() {
		if closer, ok := conn.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("Error closing connection during shutdown: %v", err)
			}
		}
	}

	return nil
}

// reapIdleConnections periodically closes connections with no inbound
// traffic past the idle threshold. Cleanup of registry/directory/room
// state happens in the handler's disconnect path, not here.
func (s *Server) reapIdleConnections() {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		for _, connID := range s.activity.IdleConnections(idleTimeout) {
			conn := s.registry.Conn(connID)
			if conn == nil {
				s.activity.RemoveConnection(connID)
				continue
			}
			if closer, ok := conn.(io.Closer); ok {
				log.Printf("Closing idle connection %s", s.registry.Label(connID))
				closer.Close()
			}
		}
	}
}
