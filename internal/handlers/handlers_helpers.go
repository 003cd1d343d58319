package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatportal-backend/internal/auth"
	"chatportal-backend/internal/models"
	"chatportal-backend/internal/services"
	"chatportal-backend/pkg/httputil"
)

const previewLength = 100

// requireUser extracts the authenticated user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "User ID not found in token context")
	}
	return userID, ok
}

// pathUUID parses a chi URL parameter or writes a 400.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID format")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps service errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConversationEnded):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConversationNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, fallback)
	}
}

// queryInt reads a positive integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. With endOfDay a plain
// date covers the whole day.
func queryTime(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
}

// queryList splits a comma separated query parameter, dropping blanks.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toMessageResponse(m models.Message) models.MessageResponse {
	return models.MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Sender:         m.Sender,
		Timestamp:      m.Timestamp,
	}
}

func toMessageResponses(msgs []models.Message) []models.MessageResponse {
	out := make([]models.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toListItem(c models.Conversation) models.ConversationListItem {
	item := models.ConversationListItem{
		ID:           c.ID,
		Title:        c.Title,
		Status:       c.Status,
		CreatedAt:    c.CreatedAt,
		EndedAt:      c.EndedAt,
		MessageCount: c.MessageCount,
		Duration:     c.DurationMinutes(),
		Topics:       nonNilTopics(c.Topics),
	}
	if n := len(c.Messages); n > 0 {
		last := c.Messages[n-1]
		content := []rune(last.Content)
		if len(content) > previewLength {
			content = content[:previewLength]
		}
		item.LatestMessage = &models.LatestMessagePreview{
			Content:   string(content),
			Sender:    last.Sender,
			Timestamp: last.Timestamp,
		}
	}
	return item
}

func toConversationResponse(c *models.Conversation) models.ConversationResponse {
	resp := models.ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		Status:       c.Status,
		CreatedAt:    c.CreatedAt,
		EndedAt:      c.EndedAt,
		Topics:       nonNilTopics(c.Topics),
		Messages:     toMessageResponses(c.Messages),
		Duration:     c.DurationMinutes(),
		MessageCount: c.MessageCount,
	}
	// Summary and sentiment stay null until the conversation ends.
	if c.Summary != "" {
		summary := c.Summary
		resp.Summary = &summary
	}
	if c.Sentiment != "" {
		sentiment := c.Sentiment
		resp.Sentiment = &sentiment
	}
	if resp.MessageCount == 0 {
		resp.MessageCount = len(c.Messages)
	}
	return resp
}

func toQueryResponse(q models.ConversationQuery) models.ConversationQueryResponse {
	ids := q.RelevantConversations
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return models.ConversationQueryResponse{
		ID:                    q.ID,
		QueryText:             q.QueryText,
		Response:              q.Response,
		RelevantConversations: ids,
		CreatedAt:             q.CreatedAt,
	}
}

func nonNilTopics(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
