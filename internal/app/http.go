package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

type HTTPServer struct {
	service *Service
}

func NewHTTPServer(service *Service) *HTTPServer {
	return &HTTPServer{service: service}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.service.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"status": "not_ready",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ready"})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/relay-event" {
		s.handleRelayEvent(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "not found")
}

// handleRelayEvent is the inbound route for the automation collaborator.
// Every evaluated outcome answers 200: {"status":"ok"} when delivered,
// {"error":"<reason>"} for any skip. Only unexpected failures answer 500,
// and those never carry internal detail in the body.
func (s *HTTPServer) handleRelayEvent(w http.ResponseWriter, r *http.Request) {
	if token := s.service.cfg.RelayToken; token != "" {
		provided := strings.TrimSpace(r.Header.Get("x-notegate-relay-token"))
		if provided == "" || provided != token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	var body struct {
		UserID   int64 `json:"user_id"`
		ThreadID int64 `json:"thread_id"`
		OwnerID  int64 `json:"owner_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.internalError(w, r, err)
		return
	}

	outcome, err := s.service.HandleRelayEvent(r.Context(), RelayEvent{
		UserID:   body.UserID,
		ThreadID: body.ThreadID,
		OwnerID:  body.OwnerID,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if outcome.Delivered {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"error": string(outcome.Skip)})
}

func (s *HTTPServer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf(`{"request_id":"%s","path":"%s","error":%q}`, requestIDFrom(r.Context()), r.URL.Path, err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
