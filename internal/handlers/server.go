// Package handlers exposes the HTTP surface: the shared webhook ingress plus
// small operational endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
	"github.com/HugoGarcez/agentpromp-sub000/internal/services"
)

// ContactLister exposes armed follow-up timers for the status endpoint.
type ContactLister interface {
	ListActive(ctx context.Context, companyID string) ([]models.ContactState, error)
}

// Server holds the HTTP dependencies.
type Server struct {
	router    *mux.Router
	processor *services.Processor
	tenants   services.TenantSource
	contacts  ContactLister
}

func NewServer(processor *services.Processor, tenants services.TenantSource, contacts ContactLister) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		processor: processor,
		tenants:   tenants,
		contacts:  contacts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	chain := alice.New(requestLogger)
	s.router.Handle("/health", chain.Then(s.Health())).Methods(http.MethodGet)
	s.router.Handle("/webhook/{token}", chain.Then(s.Webhook())).Methods(http.MethodPost)
	s.router.Handle("/followups/{token}", chain.Then(s.FollowUps())).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Webhook receives one provider delivery and runs the pipeline. The provider
// only needs an acknowledgment; drop statuses still return 200 so it does not
// retry messages we decided to ignore.
func (s *Server) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]

		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		status, err := s.processor.Process(r.Context(), token, body)
		if err != nil {
			if errors.Is(err, services.ErrUnknownToken) {
				s.respondWithError(w, http.StatusNotFound, "unknown token")
				return
			}
			log.Error().Err(err).Msg("Webhook processing failed")
			s.respondWithError(w, http.StatusInternalServerError, "processing failed")
			return
		}

		s.respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": status})
	}
}

// Health is a liveness probe.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	}
}

// FollowUps lists the armed follow-up timers of the tenant behind the token.
func (s *Server) FollowUps() http.HandlerFunc {
	type entry struct {
		RemoteJID    string     `json:"remoteJid"`
		AttemptIndex int        `json:"attemptIndex"`
		LastOutbound time.Time  `json:"lastOutbound"`
		NextFollowUp *time.Time `json:"nextFollowUp"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]

		tenant, err := s.tenants.GetByToken(r.Context(), token)
		if err != nil {
			s.respondWithError(w, http.StatusNotFound, "unknown token")
			return
		}

		states, err := s.contacts.ListActive(r.Context(), tenant.CompanyID)
		if err != nil {
			log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to list follow-up timers")
			s.respondWithError(w, http.StatusInternalServerError, "could not list follow-ups")
			return
		}

		entries := make([]entry, 0, len(states))
		for _, st := range states {
			entries = append(entries, entry{
				RemoteJID:    st.RemoteJID,
				AttemptIndex: st.AttemptIndex,
				LastOutbound: st.LastOutbound,
				NextFollowUp: st.NextFollowUp,
			})
		}
		s.respondWithJSON(w, http.StatusOK, map[string]interface{}{"followUps": entries})
	}
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]interface{}{"error": message})
}

// requestLogger logs method, path and duration for every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
