package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/record"
	"github.com/pufmi/connect4/pkg/uid"
)

type GameService interface {
	StartNewGame(ctx context.Context) (*domain.Game, error)
	ApplyMove(ctx context.Context, gameID string, column int, player domain.Player) (*domain.Game, error)
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	ListRecentGames(ctx context.Context, limit int) ([]*domain.Game, error)
}

type GameHandler struct {
	Games GameService
}

func NewGameHandler(games GameService) *GameHandler {
	return &GameHandler{Games: games}
}

type moveRequest struct {
	Column *int   `json:"column" binding:"required"`
	Player string `json:"player" binding:"required"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	GameID  string `json:"gameId,omitempty"`
}

// StartGame creates a new empty game
func (h *GameHandler) StartGame(c *gin.Context) {
	game, err := h.Games.StartNewGame(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

// ListGames returns the most recently started games, ?limit=N
func (h *GameHandler) ListGames(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	games, err := h.Games.ListRecentGames(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, games)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	gameID := c.Param("id")
	if !uid.IsGameID(gameID) {
		writeError(c, domain.NewGameNotFound(gameID))
		return
	}

	game, err := h.Games.GetGame(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// MakeMove drops a disk for the given player into the requested column
func (h *GameHandler) MakeMove(c *gin.Context) {
	gameID := c.Param("id")
	if !uid.IsGameID(gameID) {
		writeError(c, domain.NewGameNotFound(gameID))
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "body must be {\"column\": int, \"player\": \"RUBY\"|\"BLUE\"}", GameID: gameID})
		return
	}

	player, err := domain.ParsePlayer(req.Player)
	if err != nil || !player.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "player must be RUBY or BLUE", GameID: gameID})
		return
	}

	game, err := h.Games.ApplyMove(c.Request.Context(), gameID, *req.Column, player)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func statusFor(kind domain.Error) (int, string) {
	switch kind {
	case domain.ErrGameNotFound:
		return http.StatusNotFound, "game_not_found"
	case domain.ErrInvalidColumn:
		return http.StatusBadRequest, "invalid_column"
	case domain.ErrGameOver:
		return http.StatusConflict, "game_over"
	case domain.ErrWrongTurn:
		return http.StatusConflict, "wrong_turn"
	case domain.ErrColumnFull:
		return http.StatusConflict, "column_full"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	var gameErr *domain.GameError
	if errors.As(err, &gameErr) {
		status, code := statusFor(gameErr.Kind)
		c.JSON(status, errorResponse{Error: code, Message: gameErr.Message, GameID: gameErr.GameID})
		return
	}

	// another writer committed first; the move was not applied and can be retried
	if errors.Is(err, record.ErrConcurrentUpdate) {
		c.JSON(http.StatusConflict, errorResponse{Error: "concurrent_update", Message: "Game was changed by another request, reload and retry", GameID: c.Param("id")})
		return
	}

	log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal", Message: "Internal server error"})
}
