package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/deck"
	"github.com/doko-game/doko/internal/event"
	"github.com/doko-game/doko/internal/game"
	"github.com/doko-game/doko/internal/model"
)

// sessionHeader carries the opaque bearer token identifying a session.
const sessionHeader = "X-Session-Token"

type dealSittingRequest struct {
	GroupID string `json:"group_id"`
}

type sittingResponse struct {
	SittingID uuid.UUID   `json:"sitting_id"`
	Number    int         `json:"number"`
	Seating   []uuid.UUID `json:"seating"`
}

type gameResponse struct {
	GameID       uuid.UUID `json:"game_id"`
	Number       int       `json:"number"`
	StartingSeat int       `json:"starting_seat"`
}

type playCardRequest struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

type eventResponse struct {
	Kind string `json:"kind"`
}

// authUser resolves the request's session token to a user.
func (s *Server) authUser(r *http.Request) (*model.User, error) {
	token := r.Header.Get(sessionHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, errors.New("missing session token")
	}
	return s.store.UserBySession(r.Context(), token)
}

// playerForGame resolves the player identity the user has in the game's group.
func (s *Server) playerForGame(ctx context.Context, user *model.User, gameID uuid.UUID) (*model.Player, error) {
	g, err := s.store.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sitting, err := s.store.SittingByID(ctx, g.SittingID)
	if err != nil {
		return nil, err
	}
	return s.store.PlayerByUserAndGroup(ctx, user.ID, sitting.GroupID)
}

func (s *Server) handleDealSitting(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req dealSittingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid group_id"))
		return
	}

	// Only members deal for their group.
	if _, err := s.store.PlayerByUserAndGroup(r.Context(), user.ID, groupID); err != nil {
		s.writeGameError(w, err)
		return
	}

	sitting, err := s.engine.DealNewSitting(r.Context(), groupID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, sittingResponse{
		SittingID: sitting.ID,
		Number:    sitting.Number,
		Seating:   sitting.Seating[:],
	})
}

func (s *Server) handleStartNextGame(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	sittingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid sitting id"))
		return
	}
	sitting, err := s.store.SittingByID(r.Context(), sittingID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	if _, err := s.store.PlayerByUserAndGroup(r.Context(), user.ID, sitting.GroupID); err != nil {
		s.writeGameError(w, err)
		return
	}

	g, err := s.engine.StartNextGame(r.Context(), sittingID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, gameResponse{
		GameID:       g.ID,
		Number:       g.Number,
		StartingSeat: g.StartingSeat,
	})
}

func (s *Server) handlePlayCard(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid game id"))
		return
	}

	var req playCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	suit, err := deck.ParseSuit(req.Suit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rank, err := deck.ParseRank(req.Rank)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	player, err := s.playerForGame(r.Context(), user, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	if err := s.engine.PlayCard(r.Context(), player.ID, suit, rank); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid game id"))
		return
	}

	player, err := s.playerForGame(r.Context(), user, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	view, err := s.engine.QueryGameState(r.Context(), player.ID, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleEvents is the long-poll endpoint: it blocks until one of the
// requested kinds fires for the session and returns that kind. A client
// that disconnects mid-wait gets its player reset to idle.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	kinds := event.Kinds()
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		kinds = kinds[:0]
		for _, name := range strings.Split(raw, ",") {
			kind, ok := event.ParseKind(strings.TrimSpace(name))
			if !ok {
				s.writeError(w, http.StatusBadRequest, errors.New("unknown event kind: "+name))
				return
			}
			kinds = append(kinds, kind)
		}
	}

	kind, err := s.bus.AwaitAny(r.Context(), user.SessionToken, kinds...)
	if err != nil {
		// The request context only ends when the client goes away.
		s.resetPlayer(user, r.URL.Query().Get("group_id"))
		return
	}

	s.writeJSON(w, http.StatusOK, eventResponse{Kind: string(kind)})
}

// resetPlayer puts the user's player in the given group back to online
// after their long-poll dropped.
func (s *Server) resetPlayer(user *model.User, rawGroupID string) {
	if rawGroupID == "" {
		return
	}
	groupID, err := uuid.Parse(rawGroupID)
	if err != nil {
		return
	}

	ctx := context.Background()
	player, err := s.store.PlayerByUserAndGroup(ctx, user.ID, groupID)
	if err != nil {
		return
	}
	if err := s.engine.MarkOnline(ctx, player.ID); err != nil {
		s.logger.Error("failed to reset disconnected player", "player", player.ID, "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.authUser(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, user.SessionToken, s.bus, s.logger, s.unregister)
	s.register(client)
	client.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorData{Error: err.Error()})
}

// writeGameError maps engine errors to HTTP statuses: guard violations are
// client mistakes, missing entities are 404s, invariant violations and
// anything else are server faults.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case game.IsIllegalMove(err):
		s.writeError(w, http.StatusConflict, err)
	case game.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
