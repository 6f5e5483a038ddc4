package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/interfaces"
	"fableweaver/server/internal/session"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type Handlers struct {
	config   *config.Config
	registry *session.Registry
}

func NewHandlers(cfg *config.Config, registry *session.Registry) *Handlers {
	return &Handlers{config: cfg, registry: registry}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"service":  "fableweaver",
		"sessions": h.registry.Len(),
	})
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	indexPath := filepath.Join(h.config.Server.StaticDir, "index.html")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "index.html not found"})
		return
	}
	http.ServeFile(w, r, indexPath)
}

// GameSocket upgrades the connection and runs the session's receive
// loop until the client disconnects.
func (h *Handlers) GameSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Web] upgrade failed for session %s: %v", sessionID, err)
		return
	}
	conn := newWSConn(rawConn)
	defer conn.Close()

	sess, created := h.registry.GetOrCreate(sessionID, conn)
	if created {
		sess.Start()
	}

	h.receiveLoop(r.Context(), sess, conn, sessionID)

	// Drain background tasks before dropping the session so a late
	// image still gets its delivery attempt. A socket superseded by a
	// reconnect leaves the session alive.
	h.registry.Release(sessionID, conn)
}

func (h *Handlers) receiveLoop(ctx context.Context, sess *session.Session, conn interfaces.Conn, sessionID string) {
	for {
		data, err := conn.ReceiveText(ctx)
		if err != nil {
			log.Printf("[Web] session %s disconnected: %v", sessionID, err)
			return
		}
		var input interfaces.ClientInput
		if err := json.Unmarshal(data, &input); err != nil {
			log.Printf("[Web] session %s sent unparseable input: %v", sessionID, err)
			continue
		}
		if strings.TrimSpace(input.Choice) == "" {
			continue
		}
		sess.SubmitChoice(input.Choice)
	}
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func NewRouter(cfg *config.Config, registry *session.Registry) *chi.Mux {
	r := chi.NewRouter()

	// Request logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("REQUEST: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})
	r.Use(corsMiddleware)

	handlers := NewHandlers(cfg, registry)

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = "./static"
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))

	r.Get("/", handlers.Home)
	r.Get("/health", handlers.HealthCheck)
	r.Mount("/static", fileServer)

	r.Get("/ws/{session_id}", handlers.GameSocket)
	r.Get("/ws", handlers.GameSocket)

	return r
}

// generateSessionID produces a random id for clients that connect
// without one.
func generateSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "session-fallback"
	}
	return hex.EncodeToString(b)
}
