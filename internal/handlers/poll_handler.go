package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PollHandler serves polls and voting.
type PollHandler struct {
	polls *services.PollService
}

// NewPollHandler creates a new PollHandler
func NewPollHandler(polls *services.PollService) *PollHandler {
	return &PollHandler{polls: polls}
}

// RegisterPublicPollRoutes registers poll reads. Run OptionalJWT on the group
// to get hasVoted filled in.
func (h *PollHandler) RegisterPublicPollRoutes(g *echo.Group) {
	g.GET("/polls", h.GetPolls)
	g.GET("/polls/:id", h.GetPoll)
}

func (h *PollHandler) RegisterPollRoutes(g *echo.Group) {
	g.POST("/polls/:id/vote", h.Vote)
}

// RegisterAdminPollRoutes registers poll management on an admin group
func (h *PollHandler) RegisterAdminPollRoutes(g *echo.Group) {
	g.POST("/polls", h.CreatePoll)
	g.PUT("/polls/:id", h.UpdatePoll)
	g.PUT("/polls/:id/status", h.SetPollStatus)
	g.DELETE("/polls/:id", h.DeletePoll)
}

// pollView is a poll as seen by one user.
type pollView struct {
	*models.Poll
	HasVoted bool `json:"hasVoted"`
}

func viewPoll(c echo.Context, poll *models.Poll) pollView {
	userID := currentUserID(c)
	return pollView{Poll: poll, HasVoted: userID != "" && poll.HasVoted(userID)}
}

// GetPolls lists polls, active ones unless ?status=closed is given.
func (h *PollHandler) GetPolls(c echo.Context) error {
	status := models.PollActive
	if c.QueryParam("status") == string(models.PollClosed) {
		status = models.PollClosed
	}
	page, limit := pagination(c, 20, 50)

	polls, err := h.polls.List(c.Request().Context(), status, int64((page-1)*limit), int64(limit))
	if err != nil {
		return httpError(err)
	}
	views := make([]pollView, len(polls))
	for i := range polls {
		views[i] = viewPoll(c, &polls[i])
	}
	return c.JSON(http.StatusOK, views)
}

func (h *PollHandler) GetPoll(c echo.Context) error {
	poll, err := h.polls.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewPoll(c, poll))
}

// Vote records the caller's single vote.
func (h *PollHandler) Vote(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.VoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	poll, err := h.polls.Vote(c.Request().Context(), userID, c.Param("id"), req.OptionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewPoll(c, poll))
}

func (h *PollHandler) CreatePoll(c echo.Context) error {
	var req models.CreatePollRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	poll, err := h.polls.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, poll)
}

func (h *PollHandler) UpdatePoll(c echo.Context) error {
	var req models.UpdatePollRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	poll, err := h.polls.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, poll)
}

func (h *PollHandler) SetPollStatus(c echo.Context) error {
	var req models.UpdatePollStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.polls.SetStatus(c.Request().Context(), c.Param("id"), req.Status); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": req.Status})
}

func (h *PollHandler) DeletePoll(c echo.Context) error {
	if err := h.polls.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
