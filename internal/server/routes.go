package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"linkrelay-server/internal/relay"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.rootHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"service": "link relay"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]int{
		"connections": s.registry.Count(),
		"linkedUsers": s.directory.Count(),
		"rooms":       s.rooms.RoomCount(),
	})
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// wsConn adapts a coder/websocket connection to the relay.Conn interface.
// It also implements io.Closer so shutdown and the idle reaper can force
// a disconnect.
type wsConn struct {
	socket *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	return c.socket.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.socket.Close(websocket.StatusNormalClosure, "closed by server")
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	conn := &wsConn{socket: socket}
	label := s.registry.Add(connectionID, conn)
	s.activity.Update(connectionID) // track from accept, not first message
	log.Printf("%s entered the server (%s)", label, connectionID)

	// Initial greeting: tells the client to send its identity.
	if err := s.send(ctx, conn, GreetingMessage{Status: "IdSend"}); err != nil {
		log.Printf("Greeting to %s failed: %v", label, err)
	}

	defer s.cleanupConnection(connectionID, label)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", label, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", label)
			continue
		}

		s.activity.Update(connectionID)

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(ctx, conn, "RATE_LIMIT_EXCEEDED: Too many messages")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Invalid JSON from %s: %v", label, err)
			s.sendError(ctx, conn, "INVALID_JSON: Malformed message")
			continue
		}

		// Route the event by its status tag.
		switch env.Status {
		case "Link":
			s.handleLink(ctx, conn, connectionID, data)

		case "InviteShip":
			s.handleInviteShip(ctx, conn, connectionID, data)

		case "InviteShipBack":
			s.handleInviteShipBack(ctx, conn, connectionID, data)

		case "RemoveShip":
			s.handleRemoveShip(ctx, conn, connectionID, data)

		case "AlongWHGame":
			s.handleAlongWHGame(ctx, conn, connectionID, data)

		case "AlongWHGameDeci":
			s.handleAlongWHGameDeci(ctx, conn, connectionID, data)

		case "CancelRoom":
			s.handleCancelRoom(ctx, conn, connectionID, data)

		case "IdSend":
			s.handleIdSend(ctx, conn, connectionID, data)

		case "MemberPlayStep":
			s.handleMemberPlayStep(ctx, conn, connectionID, data)

		default:
			// Unrecognized status: log it, keep the connection open,
			// send nothing back.
			log.Printf("Received unknown status %q from %s", env.Status, label)
		}
	}
}

// cleanupConnection runs synchronously when a connection's handler
// unwinds. Room membership and the join-guard entry are released, the
// identity and transport mappings removed, and only then is the updated
// roster broadcast - so no other handler can observe a half-cleaned
// state for this connection.
func (s *Server) cleanupConnection(connectionID, label string) {
	left := s.rooms.Leave(connectionID)
	s.directory.Unlink(connectionID)
	s.registry.Remove(connectionID)
	s.rateLimiter.RemoveConnection(connectionID)
	s.activity.RemoveConnection(connectionID)

	if left != nil && !left.Closed {
		data, err := json.Marshal(MemberLeftMessage{Status: "SoneLeave", RoomMembers: left.Roster})
		if err == nil {
			relay.Broadcast(context.Background(), s.registry, left.Members, data)
		}
	}

	log.Printf("%s has left the server", label)
}

func (s *Server) send(ctx context.Context, conn relay.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Send(ctx, data)
}

// sendError replies to the requester only. Errors are never broadcast
// and never retried.
func (s *Server) sendError(ctx context.Context, conn relay.Conn, message string) {
	if err := s.send(ctx, conn, ErrorReply{Status: "Error", Message: message}); err != nil {
		log.Printf("Failed to send error reply: %v", err)
	}
}
