package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

type createChallengeRequest struct {
	Agent   string `json:"agent"`
	Variant string `json:"variant"`
	Tier    int    `json:"tier"`
}

type createTournamentRequest struct {
	Size int `json:"size"`
}

type statusResponse struct {
	Sessions         []string `json:"sessions"`
	Tournaments      int      `json:"tournaments"`
	Challenges       int      `json:"challenges"`
	BettingPools     int      `json:"bettingPools"`
	SpectatorClients int      `json:"spectatorClients"`
	Rooms            int      `json:"rooms"`
}

// Router builds the gin engine serving websocket upgrades, the REST
// surface, health and metrics.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/ws", s.hub.ServeWS)
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/challenges", s.createChallenge)
		v1.GET("/challenges/:id", s.challengeInfo)
		v1.POST("/challenges/:id/connect", s.connectChallenge)
		v1.POST("/challenges/:id/disconnect", s.disconnectChallenge)
		v1.POST("/tournaments", s.createTournament)
		v1.GET("/status", s.status)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body: " + err.Error()})
		return
	}
	info, err := s.challenges.CreateChallenge(req.Agent, maze.Variant(req.Variant), req.Tier)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) challengeInfo(c *gin.Context) {
	info, err := s.challenges.Info(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) connectChallenge(c *gin.Context) {
	if err := s.challenges.AgentConnected(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// disconnectChallenge reports a dropped agent link. Unknown or already
// finished challenges are a no-op, so the endpoint never fails.
func (s *Server) disconnectChallenge(c *gin.Context) {
	s.challenges.AgentDisconnected(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) createTournament(c *gin.Context) {
	var req createTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body: " + err.Error()})
		return
	}
	id, err := s.tournaments.CreateAutonomousTournament(req.Size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tournamentId": id})
}

func (s *Server) status(c *gin.Context) {
	clients, rooms := s.hub.Stats()
	c.JSON(http.StatusOK, statusResponse{
		Sessions:         s.sessions.ActiveSessions(),
		Tournaments:      s.tournaments.ActiveTournamentCount(),
		Challenges:       s.challenges.ActiveChallengeCount(),
		BettingPools:     s.betting.ActiveSessionCount(),
		SpectatorClients: clients,
		Rooms:            rooms,
	})
}

// fail translates the error taxonomy into HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arenaerr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, arenaerr.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arenaerr.ErrInsufficientAgents):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, arenaerr.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, arenaerr.ErrLedgerFailure):
		status = http.StatusBadGateway
	case errors.Is(err, arenaerr.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
