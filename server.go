package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	cfg      *Config
	registry *Registry
	srv      *http.Server
	limiter  *RateLimiter
}

func NewServer(cfg *Config, registry *Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		limiter:  NewRateLimiter(cfg.RateLimitPerIP),
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/", s.handleIndex)
	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.HandlerFunc(http.MethodGet, "/rooms", s.handleRooms)
	router.HandlerFunc(http.MethodGet, "/c", s.handleCreate)
	router.HandlerFunc(http.MethodPost, "/c", s.handleCreate)
	router.GET("/g/:code", s.handleGamePage)
	router.GET("/ws/:code", s.handleWS)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) ListenAndServe() error {
	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		log.Printf("TLS enabled (cert=%s)", s.cfg.TLSCert)
		return s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	log.Println("TLS disabled (no cert/key configured)")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","rooms":%d}`, s.registry.RoomCount())
}

// handleCreate allocates a room and redirects the creator to its page.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	code, err := s.registry.CreateCode()
	if err != nil {
		http.Error(w, "no room codes available", http.StatusServiceUnavailable)
		return
	}
	log.Printf("room %s created", code)
	http.Redirect(w, r, "/g/"+code.String(), http.StatusTemporaryRedirect)
}

func (s *Server) handleGamePage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code, err := ParseRoomCode(ps.ByName("code"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.registry.Lookup(code); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(gameHTML))
}

// handleRooms lists the public rooms as {code, name, players}.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.registry.ListPublic())
}

// handleWS resolves the code, upgrades the connection and hands it to a
// protocol handler bound to the room.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	code, err := ParseRoomCode(ps.ByName("code"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	room, ok := s.registry.Lookup(code)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	client := NewClient(room, conn, s.cfg.PingInterval)
	log.Printf("conn=%s attached to room %s (ip=%s)", client.connID[:8], code, ip)
	go client.WritePump()
	go client.ReadPump()
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
