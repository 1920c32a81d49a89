package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/presentation"
)

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status        string              `json:"status"`
	Uptime        string              `json:"uptime"`
	StreamStatus  domain.StreamStatus `json:"streamStatus"`
	SpotlightSize int                 `json:"spotlightSize"`
	SelectedToken string              `json:"selectedToken,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	st := s.store.State()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
		StreamStatus:  st.StreamStatus,
		SpotlightSize: len(st.Spotlight),
	}
	if st.SelectedToken != nil {
		resp.SelectedToken = st.SelectedToken.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) terminal(c *gin.Context) {
	view := presentation.Project(s.store.State())
	view.Trends = s.currentTrends()
	c.JSON(http.StatusOK, view)
}

func (s *Server) spotlight(c *gin.Context) {
	st := s.store.State()
	var selectedID string
	if st.SelectedToken != nil {
		selectedID = st.SelectedToken.ID
	}
	cards := make([]presentation.TokenCard, 0, len(st.Spotlight))
	for _, t := range st.Spotlight {
		cards = append(cards, presentation.Card(t, t.ID == selectedID))
	}
	c.JSON(http.StatusOK, cards)
}

func (s *Server) pulse(c *gin.Context) {
	st := s.store.State()
	if st.Pulse == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pulse":  presentation.Pulse(*st.Pulse),
		"trends": s.currentTrends(),
	})
}

func (s *Server) selectToken(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := s.commandContext(c)
	defer cancel()

	s.store.SelectToken(ctx, id)
	s.terminal(c)
}

func (s *Server) refresh(c *gin.Context) {
	ctx, cancel := s.commandContext(c)
	defer cancel()

	s.store.RefreshSelected(ctx)
	s.terminal(c)
}

func (s *Server) connectStreams(c *gin.Context) {
	ctx, cancel := s.commandContext(c)
	defer cancel()

	s.store.ConnectStreams(ctx)
	c.JSON(http.StatusOK, gin.H{"streamStatus": s.store.State().StreamStatus})
}

func (s *Server) disconnectStreams(c *gin.Context) {
	s.store.DisconnectStreams()
	c.JSON(http.StatusOK, gin.H{"streamStatus": s.store.State().StreamStatus})
}

// submitOrder always answers 200 with {success, id?} once the body decodes.
func (s *Server) submitOrder(c *gin.Context) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid order body"})
		return
	}

	ctx, cancel := s.commandContext(c)
	defer cancel()

	result := s.orders.SubmitOrder(ctx, req)
	if !result.Success {
		s.logger.Info("order rejected", zap.String("token", req.TokenID))
	}
	c.JSON(http.StatusOK, result)
}
