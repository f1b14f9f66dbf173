package handlers

import (
	"net/http"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// MessageHandler serves direct messages.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// RegisterMessageRoutes registers direct message routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/messages", h.SendMessage)
	g.GET("/messages/:peerId", h.GetConversation)
	g.PUT("/messages/:peerId/read", h.MarkRead)
}

// SendMessage appends a message to the conversation with receiver_id.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.messages.Send(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// GetConversation returns the latest page of the conversation, oldest first.
func (h *MessageHandler) GetConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	peerID := c.Param("peerId")
	msgs, err := h.messages.Conversation(c.Request().Context(), userID, peerID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"chatId":   models.ChatID(userID, peerID),
		"messages": msgs,
	})
}

// MarkRead flags the peer's messages to the caller as read.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	n, err := h.messages.MarkRead(c.Request().Context(), userID, c.Param("peerId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
