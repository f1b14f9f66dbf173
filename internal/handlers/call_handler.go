package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v3"
)

// CallHandler exposes call signaling over REST. The same operations are
// reachable over the WebSocket endpoint.
type CallHandler struct {
	calls *services.CallService
}

// NewCallHandler creates a new CallHandler
func NewCallHandler(calls *services.CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

// RegisterCallRoutes registers call signaling routes
func (h *CallHandler) RegisterCallRoutes(g *echo.Group) {
	g.GET("/calls/ice-servers", h.GetICEServers)
	g.POST("/calls", h.CreateCall)
	g.GET("/calls/:id", h.GetCall)
	g.PUT("/calls/:id/offer", h.SetOffer)
	g.PUT("/calls/:id/answer", h.Answer)
	g.PUT("/calls/:id/reject", h.Reject)
	g.PUT("/calls/:id/end", h.End)
	g.POST("/calls/:id/candidates", h.AddCandidate)
	g.GET("/calls/:id/candidates", h.ListCandidates)
}

func (h *CallHandler) GetICEServers(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"iceServers": h.calls.ICEServers()})
}

// CreateCall starts ringing receiver_id.
func (h *CallHandler) CreateCall(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateCallRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	call, err := h.calls.Initiate(c.Request().Context(), userID, req.ReceiverID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, call)
}

func (h *CallHandler) GetCall(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	call, err := h.calls.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, call)
}

func bindDescription(c echo.Context) (webrtc.SessionDescription, error) {
	var req models.SessionDescriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(req.Type), SDP: req.SDP}, nil
}

// SetOffer stores the caller's SDP offer.
func (h *CallHandler) SetOffer(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	offer, err := bindDescription(c)
	if err != nil {
		return err
	}

	call, err := h.calls.SetOffer(c.Request().Context(), userID, c.Param("id"), offer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, call)
}

// Answer stores the receiver's SDP answer and connects the call.
func (h *CallHandler) Answer(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	answer, err := bindDescription(c)
	if err != nil {
		return err
	}

	call, err := h.calls.Answer(c.Request().Context(), userID, c.Param("id"), answer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, call)
}

func (h *CallHandler) Reject(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	call, err := h.calls.Reject(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, call)
}

func (h *CallHandler) End(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	call, err := h.calls.End(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, call)
}

// AddCandidate appends to the caller's own role log.
func (h *CallHandler) AddCandidate(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CandidateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	candidate, err := h.calls.AddCandidate(c.Request().Context(), userID, c.Param("id"), req.Init())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, candidate)
}

// ListCandidates returns the peer's candidates.
func (h *CallHandler) ListCandidates(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	candidates, err := h.calls.ListCandidates(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if candidates == nil {
		candidates = []models.IceCandidate{}
	}
	return c.JSON(http.StatusOK, candidates)
}
