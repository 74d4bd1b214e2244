package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"quizroom/internal/images"
	"quizroom/pkg/interfaces"
)

// RoomDirectory is the slice of the room manager the HTTP API needs.
type RoomDirectory interface {
	Snapshot() map[string]int
	Stats() map[string]int
	RoomExists(roomCode string) bool
}

// Server is the REST side of the service: health, image upload,
// operator control and room stats. No business logic lives here.
type Server struct {
	store     interfaces.ChatStore
	rooms     RoomDirectory
	uploader  interfaces.Uploader
	pager     interfaces.Pager
	notifier  interfaces.Notifier
	opts      Options
	router    *http.ServeMux
	startedAt time.Time
}

type Options struct {
	OperatorToken  string
	UploadMaxBytes int64
}

func NewServer(
	store interfaces.ChatStore,
	rooms RoomDirectory,
	uploader interfaces.Uploader,
	pager interfaces.Pager,
	notifier interfaces.Notifier,
	opts Options,
) *Server {
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = images.DefaultMaxBytes
	}
	s := &Server{
		store:     store,
		rooms:     rooms,
		uploader:  uploader,
		pager:     pager,
		notifier:  notifier,
		opts:      opts,
		router:    http.NewServeMux(),
		startedAt: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/upload-image", s.corsMiddleware(http.HandlerFunc(s.uploadImage)))
	s.router.Handle("/api/admin/paging", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.setPaging))))
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listRooms))))
	s.router.Handle("/api/rooms/new-code", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.newRoomCode))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Rooms       map[string]int `json:"rooms"`
	UptimeSecs  int64          `json:"uptime_seconds"`
	PagingState bool           `json:"paging_enabled"`
}

type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
	PublicID string `json:"publicId"`
}

type PagingRequest struct {
	Enabled bool `json:"enabled"`
}

type RoomsResponse struct {
	Rooms map[string]int `json:"rooms"`
	Count int            `json:"count"`
}

type NewCodeResponse struct {
	RoomCode string `json:"roomCode"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Rooms:       s.rooms.Stats(),
		UptimeSecs:  int64(time.Since(s.startedAt).Seconds()),
		PagingState: s.pager.Enabled(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A little headroom over the image cap for the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.UploadMaxBytes+64*1024)
	if err := r.ParseMultipartForm(s.opts.UploadMaxBytes); err != nil {
		s.sendError(w, "upload too large or malformed", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.sendError(w, "multipart field 'image' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, "could not read upload", http.StatusBadRequest)
		return
	}

	result, err := s.uploader.Upload(r.Context(), header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, images.ErrFileTooLarge), errors.Is(err, images.ErrNotAnImage):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("api: upload failed file=%s err=%v", header.Filename, err)
			s.sendError(w, "image storage unavailable", http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(UploadResponse{
		ImageURL: result.ImageURL,
		PublicID: result.PublicID,
	})
}

func (s *Server) setPaging(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.OperatorToken == "" {
		s.sendError(w, "operator control is not configured", http.StatusForbidden)
		return
	}
	if r.Header.Get("X-Operator-Token") != s.opts.OperatorToken {
		s.sendError(w, "invalid operator token", http.StatusUnauthorized)
		return
	}

	var req PagingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	s.pager.SetEnabled(req.Enabled)
	s.notifier.BroadcastAll("admin-call-status-changed", map[string]bool{"enabled": req.Enabled})
	log.Printf("api: paging toggled enabled=%t", req.Enabled)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": req.Enabled})
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := s.rooms.Snapshot()
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RoomsResponse{
		Rooms: rooms,
		Count: len(rooms),
	})
}

// roomCodeAlphabet skips lookalike characters so codes can be read
// aloud across the room.
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

func (s *Server) newRoomCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for attempt := 0; attempt < 20; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			s.sendError(w, "could not generate room code", http.StatusInternalServerError)
			return
		}
		if s.rooms.RoomExists(code) {
			continue
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(NewCodeResponse{RoomCode: code})
		return
	}

	s.sendError(w, "no free room code available", http.StatusServiceUnavailable)
}

func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Operator-Token")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
