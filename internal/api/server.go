package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/gigd/internal/realtime"
	"github.com/btouchard/gigd/internal/roster"
	"github.com/btouchard/gigd/internal/store"
)

// Server is the HTTP surface: gig CRUD for the manager, per-gent
// listings, and the WebSocket push endpoint.
type Server struct {
	store    store.Store
	roster   *roster.Roster
	registry *realtime.Registry
}

// NewServer creates a Server over the given store, roster and registry.
func NewServer(st store.Store, ros *roster.Roster, reg *realtime.Registry) *Server {
	return &Server{store: st, roster: ros, registry: reg}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/gigs", s.handleCreateGig)
	r.Get("/gigs", s.handleListGigs)
	r.Patch("/gigs/{gigID}", s.handleUpdateGig)
	r.Post("/gigs/{gigID}/assign", s.handleAssign)

	// The manager dashboard uses the same listing as /gigs.
	r.Get("/manager/gigs", s.handleListGigs)

	r.Get("/gents", s.handleListGents)
	r.Get("/gent/{gentID}/gigs", s.handleGigsForGent)

	r.Get("/ws", s.handleWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// gigResponse is the JSON shape of a gig record.
type gigResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	ClientEmail string `json:"client_email"`
	Fee         int64  `json:"fee"`
}

// gigWithGentsResponse annotates a gig with its sorted assignee list.
type gigWithGentsResponse struct {
	gigResponse
	Gents []string `json:"gents"`
}

func toGigResponse(g *store.Gig) gigResponse {
	return gigResponse{ID: g.ID, Date: g.Date, ClientEmail: g.ClientEmail, Fee: g.Fee}
}

// createGigRequest uses pointers so a missing field is distinguishable
// from a zero value (a fee of 0 is legal).
type createGigRequest struct {
	Date        *string `json:"date"`
	ClientEmail *string `json:"client_email"`
	Fee         *int64  `json:"fee"`
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	var req createGigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Date == nil || req.ClientEmail == nil || req.Fee == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date, client_email and fee are required"})
		return
	}

	g, err := s.store.CreateGig(*req.Date, *req.ClientEmail, *req.Fee)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGigResponse(g))
}

func (s *Server) handleListGigs(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.store.ListGigs()
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]gigWithGentsResponse, 0, len(gigs))
	for _, g := range gigs {
		out = append(out, gigWithGentsResponse{
			gigResponse: toGigResponse(&g.Gig),
			Gents:       g.Gents,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"gigs": out})
}

// updateGigRequest carries a partial patch; absent fields stay unchanged.
type updateGigRequest struct {
	Date        *string `json:"date"`
	ClientEmail *string `json:"client_email"`
	Fee         *int64  `json:"fee"`
}

func (s *Server) handleUpdateGig(w http.ResponseWriter, r *http.Request) {
	var req updateGigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	g, err := s.store.UpdateGig(chi.URLParam(r, "gigID"), store.GigPatch{
		Date:        req.Date,
		ClientEmail: req.ClientEmail,
		Fee:         req.Fee,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGigResponse(g))
}

// assignRequest toggles a gent's membership in a gig's assignee set.
type assignRequest struct {
	GentID   *string `json:"gent_id"`
	Assigned *bool   `json:"assigned"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.GentID == nil || req.Assigned == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "gent_id and assigned are required"})
		return
	}

	gigID := chi.URLParam(r, "gigID")
	gents, err := s.store.SetAssignment(gigID, *req.GentID, *req.Assigned)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": gigID, "gents": gents})
}

func (s *Server) handleListGents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"gents": s.roster.Members()})
}

func (s *Server) handleGigsForGent(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.store.ListGigsForGent(chi.URLParam(r, "gentID"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]gigResponse, 0, len(gigs))
	for i := range gigs {
		out = append(out, toGigResponse(&gigs[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{"gigs": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

// writeError maps store error kinds onto HTTP statuses: validation
// failures are the client's bad input (400), missing gigs and
// off-roster gents both reject with 404.
func writeError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, store.ErrGigNotFound), errors.Is(err, store.ErrUnknownGent):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
