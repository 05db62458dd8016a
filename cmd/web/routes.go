package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type createTournamentRequest struct {
	Name         string                 `json:"name"`
	Type         bracket.TournamentType `json:"type"`
	Participants []string               `json:"participants"`
}

type recordResultRequest struct {
	WinnerID *uuid.UUID `json:"winner_id"`
}

type tournamentResponse struct {
	ID        uuid.UUID                `json:"id"`
	Name      string                   `json:"name"`
	Status    bracket.TournamentStatus `json:"status"`
	Type      bracket.TournamentType   `json:"type"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`

	Participants []participantResponse `json:"participants,omitempty"`
	Matches      []matchResponse       `json:"matches,omitempty"`
}

type participantResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Seed int       `json:"seed"`
}

type matchResponse struct {
	ID         uuid.UUID          `json:"id"`
	Stage      bracket.Stage      `json:"stage"`
	Round      int                `json:"round"`
	MatchIndex int                `json:"match_index"`
	State      bracket.MatchState `json:"state"`
	Player1ID  *uuid.UUID         `json:"player1_id"`
	Player2ID  *uuid.UUID         `json:"player2_id"`
	Score1     *int               `json:"score1"`
	Score2     *int               `json:"score2"`
	WinnerID   *uuid.UUID         `json:"winner_id"`
	Walkover   bool               `json:"walkover"`
}

func toTournamentResponse(t *bracket.Tournament) tournamentResponse {
	return tournamentResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Type:      t.Type,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toMatchResponse(m *bracket.Match) matchResponse {
	score1, score2 := m.Scores()
	return matchResponse{
		ID:         m.ID,
		Stage:      m.Stage,
		Round:      m.Round,
		MatchIndex: m.MatchIndex,
		State:      m.State(),
		Player1ID:  m.Player1ID,
		Player2ID:  m.Player2ID,
		Score1:     score1,
		Score2:     score2,
		WinnerID:   m.WinnerID,
		Walkover:   m.Walkover(),
	}
}

func newRouter(database *sqlx.DB, log *zap.Logger) http.Handler {
	tournamentStore := store.NewTournamentStore(database)
	tournamentService := service.NewTournamentService(database, tournamentStore, log)
	matchService := service.NewMatchService(database, tournamentStore, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			httputil.InternalServerError(w, log, "database unreachable", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tournaments", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := tournamentService.ListTournaments(r.Context())
			if err != nil {
				httputil.WriteError(w, log, err)
				return
			}
			resp := make([]tournamentResponse, 0, len(tournaments))
			for i := range tournaments {
				resp = append(resp, toTournamentResponse(&tournaments[i]))
			}
			httputil.WriteJSON(w, http.StatusOK, resp)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req createTournamentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httputil.BadRequest(w, log, "Invalid request body", err)
				return
			}
			if req.Type == "" {
				req.Type = bracket.SingleElimination
			}

			inputs := make([]service.ParticipantInput, 0, len(req.Participants))
			for _, name := range req.Participants {
				inputs = append(inputs, service.ParticipantInput{Name: name})
			}

			id, err := tournamentService.CreateTournament(r.Context(), req.Name, req.Type, inputs)
			if err != nil {
				httputil.WriteError(w, log, err)
				return
			}
			w.Header().Set("Location", "/tournaments/"+id.String())
			httputil.WriteJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				data, err := tournamentService.GetTournamentData(r.Context(), id)
				if err != nil {
					httputil.WriteError(w, log, err)
					return
				}

				resp := toTournamentResponse(data.Tournament)
				for _, p := range data.Participants {
					resp.Participants = append(resp.Participants, participantResponse{ID: p.ID, Name: p.DisplayName, Seed: p.Seed})
				}
				for i := range data.Matches {
					resp.Matches = append(resp.Matches, toMatchResponse(&data.Matches[i]))
				}
				httputil.WriteJSON(w, http.StatusOK, resp)
			})

			r.Post("/open", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				if err := tournamentService.Open(r.Context(), id); err != nil {
					httputil.WriteError(w, log, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				snap, err := tournamentService.Start(r.Context(), id)
				if err != nil {
					httputil.WriteError(w, log, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, snap)
			})

			r.Post("/complete", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				if err := tournamentService.Complete(r.Context(), id); err != nil {
					httputil.WriteError(w, log, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			// Polled by clients; the checksum doubles as the ETag
			r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				body, checksum, err := tournamentService.SnapshotJSON(r.Context(), id)
				if err != nil {
					httputil.WriteError(w, log, err)
					return
				}

				etag := `"` + checksum + `"`
				w.Header().Set("ETag", etag)
				if r.Header.Get("If-None-Match") == etag {
					w.WriteHeader(http.StatusNotModified)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(body)
			})

			r.Get("/matches/{matchID}", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				matchID, ok := parseID(w, r, log, "matchID")
				if !ok {
					return
				}
				match, err := matchService.GetMatch(r.Context(), id, matchID)
				if err != nil {
					httputil.WriteError(w, log, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, toMatchResponse(match))
			})

			r.Post("/matches/{matchID}/result", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, log, "id")
				if !ok {
					return
				}
				matchID, ok := parseID(w, r, log, "matchID")
				if !ok {
					return
				}

				var req recordResultRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httputil.BadRequest(w, log, "Invalid request body", err)
					return
				}

				snap, err := matchService.RecordResult(r.Context(), id, matchID, req.WinnerID)
				if err != nil {
					httputil.WriteError(w, log, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, snap)
			})
		})
	})

	return r
}

func parseID(w http.ResponseWriter, r *http.Request, log *zap.Logger, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, log, "Invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}
