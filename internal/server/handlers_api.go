package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BreederHQ/realtime/internal/broadcast"
)

// The notify API is fire-and-forget end to end: every handler answers 202
// once the payload is understood, regardless of how many clients were
// reachable. Callers must never fail their own operation over a push.

type transactionMessageRequest struct {
	MessageID       int64     `json:"messageId"`
	ThreadID        int64     `json:"threadId"`
	TransactionID   int64     `json:"transactionId"`
	SenderUserID    int64     `json:"senderUserId"`
	SenderFirstName string    `json:"senderFirstName"`
	SenderLastName  string    `json:"senderLastName"`
	BuyerUserID     int64     `json:"buyerUserId"`
	ProviderUserID  int64     `json:"providerUserId"`
	MessageText     string    `json:"messageText"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (s *Server) handleNotifyTransactionMessage(c echo.Context) error {
	var req transactionMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	if req.SenderUserID <= 0 || (req.BuyerUserID <= 0 && req.ProviderUserID <= 0) {
		return c.String(http.StatusBadRequest, "Missing sender or recipients")
	}

	s.broadcaster.BroadcastTransactionMessage(c.Request().Context(), broadcast.TransactionMessage{
		MessageID:       req.MessageID,
		ThreadID:        req.ThreadID,
		TransactionID:   req.TransactionID,
		SenderUserID:    req.SenderUserID,
		SenderFirstName: req.SenderFirstName,
		SenderLastName:  req.SenderLastName,
		BuyerUserID:     req.BuyerUserID,
		ProviderUserID:  req.ProviderUserID,
		MessageText:     req.MessageText,
		CreatedAt:       req.CreatedAt,
	})

	return c.NoContent(http.StatusAccepted)
}

type breederMessageRequest struct {
	RecipientUserID int64                    `json:"recipientUserId"`
	ThreadID        int64                    `json:"threadId"`
	Message         broadcast.BreederMessage `json:"message"`
}

func (s *Server) handleNotifyBreederMessage(c echo.Context) error {
	var req breederMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	if req.RecipientUserID <= 0 {
		return c.String(http.StatusBadRequest, "Missing recipient")
	}

	s.broadcaster.BroadcastBreederMessage(c.Request().Context(), req.RecipientUserID, req.ThreadID, req.Message)

	return c.NoContent(http.StatusAccepted)
}

type unreadCountRequest struct {
	Kind                string `json:"kind"`
	ID                  int64  `json:"id"`
	UnreadThreads       int    `json:"unreadThreads"`
	TotalUnreadMessages int    `json:"totalUnreadMessages"`
}

func (s *Server) handleNotifyUnreadCount(c echo.Context) error {
	var req unreadCountRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	kind, ok := recipientKind(req.Kind)
	if !ok || req.ID <= 0 {
		return c.String(http.StatusBadRequest, "Invalid recipient")
	}

	s.broadcaster.BroadcastUnreadCount(c.Request().Context(), kind, req.ID, req.UnreadThreads, req.TotalUnreadMessages)

	return c.NoContent(http.StatusAccepted)
}

type transactionUpdateRequest struct {
	ID              int64     `json:"id"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updatedAt"`
	BuyerUserID     int64     `json:"buyerUserId"`
	ProviderID      int64     `json:"providerId"`
	ActorUserID     int64     `json:"actorUserId"`
	ActorProviderID int64     `json:"actorProviderId"`
}

func (s *Server) handleNotifyTransactionUpdate(c echo.Context) error {
	var req transactionUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	if req.ID <= 0 || req.Status == "" {
		return c.String(http.StatusBadRequest, "Missing transaction id or status")
	}

	s.broadcaster.BroadcastTransactionUpdate(c.Request().Context(),
		broadcast.TransactionUpdatePayload{ID: req.ID, Status: req.Status, UpdatedAt: req.UpdatedAt},
		req.BuyerUserID, req.ProviderID, req.ActorUserID, req.ActorProviderID)

	return c.NoContent(http.StatusAccepted)
}

type genericNotifyRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// handleNotifyGeneric is the escape hatch for event types not yet modeled:
// the payload passes through opaque.
func (s *Server) handleNotifyGeneric(c echo.Context) error {
	kind, ok := recipientKind(c.Param("kind"))
	if !ok {
		return c.String(http.StatusBadRequest, "Unknown recipient kind")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.String(http.StatusBadRequest, "Invalid recipient id")
	}

	var req genericNotifyRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request body")
	}
	if req.Event == "" {
		return c.String(http.StatusBadRequest, "Missing event")
	}

	ctx := c.Request().Context()
	switch kind {
	case broadcast.KindUser:
		s.broadcaster.SendToUser(ctx, id, req.Event, req.Payload)
	case broadcast.KindProvider:
		s.broadcaster.SendToProvider(ctx, id, req.Event, req.Payload)
	}

	return c.NoContent(http.StatusAccepted)
}

func recipientKind(raw string) (broadcast.Kind, bool) {
	switch broadcast.Kind(raw) {
	case broadcast.KindUser:
		return broadcast.KindUser, true
	case broadcast.KindProvider:
		return broadcast.KindProvider, true
	default:
		return "", false
	}
}
