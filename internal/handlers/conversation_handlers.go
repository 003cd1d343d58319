package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"chatportal-backend/internal/analysis"
	"chatportal-backend/internal/models"
	"chatportal-backend/internal/search"
	"chatportal-backend/internal/services"
	"chatportal-backend/internal/suggestions"
	"chatportal-backend/pkg/httputil"
)

// ConversationService defines the interface expected from the conversation service.
type ConversationService interface {
	Chat(ctx context.Context, userID uuid.UUID, req models.ChatRequest) (*services.ChatResult, error)
	End(ctx context.Context, userID, id uuid.UUID) (*services.EndResult, error)
	Query(ctx context.Context, userID uuid.UUID, req models.QueryRequest) (*services.QueryResult, error)
	Related(ctx context.Context, userID, id uuid.UUID, limit int) ([]suggestions.Related, error)
	Trending(ctx context.Context, userID uuid.UUID, days int) ([]suggestions.TrendingTopic, error)
	SuggestByTopics(ctx context.Context, userID uuid.UUID, topics []string, limit int) ([]suggestions.TopicMatch, error)
	List(ctx context.Context, userID uuid.UUID, filter models.ConversationFilter) ([]models.Conversation, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Conversation, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListMessages(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.Message, error)
	ListQueries(ctx context.Context, userID uuid.UUID) ([]models.ConversationQuery, error)
}

type ConversationHandler struct {
	service ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{service: svc}
}

type endResponse struct {
	Conversation models.ConversationResponse `json:"conversation"`
	Analysis     analysis.Result             `json:"analysis"`
}

type queryResponse struct {
	QueryID               uuid.UUID      `json:"query_id"`
	Query                 string         `json:"query"`
	Response              string         `json:"response"`
	RelevantConversations []search.Match `json:"relevant_conversations"`
	RelatedSuggestions    []search.Hint  `json:"related_suggestions"`
	TotalSearched         int            `json:"total_searched"`
}

type relatedResponse struct {
	ConversationID       uuid.UUID             `json:"conversation_id"`
	RelatedConversations []suggestions.Related `json:"related_conversations"`
}

type trendingResponse struct {
	TrendingTopics []suggestions.TrendingTopic `json:"trending_topics"`
	PeriodDays     int                         `json:"period_days"`
}

type topicSuggestionsResponse struct {
	Topics      []string                 `json:"topics"`
	Suggestions []suggestions.TopicMatch `json:"suggestions"`
}

// HandleChat handles POST /v1/conversations/chat
func (h *ConversationHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	res, err := h.service.Chat(r.Context(), userID, req)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleChat for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to process chat message")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, models.ChatResponse{
		ConversationID: res.ConversationID,
		UserMessage:    toMessageResponse(res.UserMessage),
		AIResponse:     toMessageResponse(res.AIMessage),
	})
}

// HandleEnd handles POST /v1/conversations/{conversationID}/end
func (h *ConversationHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "conversationID")
	if !ok {
		return
	}

	res, err := h.service.End(r.Context(), userID, id)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleEnd for ID %s, UserID %s: %v", id, userID, err)
		respondServiceError(w, err, "Failed to end conversation")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, endResponse{
		Conversation: toConversationResponse(res.Conversation),
		Analysis:     res.Analysis,
	})
}

// HandleQuery handles POST /v1/conversations/query
func (h *ConversationHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.QueryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	res, err := h.service.Query(r.Context(), userID, req)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleQuery for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to query conversations")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, queryResponse{
		QueryID:               res.QueryID,
		Query:                 res.Query,
		Response:              res.Answer.Response,
		RelevantConversations: res.Answer.Conversations,
		RelatedSuggestions:    res.Answer.Suggestions,
		TotalSearched:         res.TotalSearched,
	})
}

// HandleRelated handles GET /v1/conversations/{conversationID}/related
func (h *ConversationHandler) HandleRelated(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "conversationID")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", suggestions.DefaultLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	related, err := h.service.Related(r.Context(), userID, id, limit)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleRelated for ID %s, UserID %s: %v", id, userID, err)
		respondServiceError(w, err, "Failed to find related conversations")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, relatedResponse{ConversationID: id, RelatedConversations: related})
}

// HandleTrending handles GET /v1/conversations/trending?days=30
func (h *ConversationHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days", suggestions.DefaultWindowDays)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	topics, err := h.service.Trending(r.Context(), userID, days)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleTrending for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to compute trending topics")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, trendingResponse{TrendingTopics: topics, PeriodDays: days})
}

// HandleTopicSuggestions handles GET /v1/conversations/suggestions?topics=a,b&limit=5
func (h *ConversationHandler) HandleTopicSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", suggestions.DefaultLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	topics := queryList(r, "topics")

	matches, err := h.service.SuggestByTopics(r.Context(), userID, topics, limit)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleTopicSuggestions for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to suggest conversations")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, topicSuggestionsResponse{Topics: topics, Suggestions: matches})
}

// HandleList handles GET /v1/conversations?status=&search=&date_from=&date_to=&topics=
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter := models.ConversationFilter{
		Status: models.ConversationStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Topics: queryList(r, "topics"),
	}
	var err error
	if filter.DateFrom, err = queryTime(r, "date_from", false); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.DateTo, err = queryTime(r, "date_to", true); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleList for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to list conversations")
		return
	}

	resp := make([]models.ConversationListItem, 0, len(items))
	for _, c := range items {
		resp = append(resp, toListItem(c))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/conversations/{conversationID}
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "conversationID")
	if !ok {
		return
	}

	conv, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleGet for ID %s, UserID %s: %v", id, userID, err)
		respondServiceError(w, err, "Failed to get conversation")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toConversationResponse(conv))
}

// HandleDelete handles DELETE /v1/conversations/{conversationID}
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "conversationID")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		log.Printf("ERROR [ConversationHandler] HandleDelete for ID %s, UserID %s: %v", id, userID, err)
		respondServiceError(w, err, "Failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListMessages handles GET /v1/messages?conversation_id=
func (h *ConversationHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var conversationID *uuid.UUID
	if raw := r.URL.Query().Get("conversation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID format")
			return
		}
		conversationID = &id
	}

	msgs, err := h.service.ListMessages(r.Context(), userID, conversationID)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleListMessages for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to list messages")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toMessageResponses(msgs))
}

// HandleListQueries handles GET /v1/queries
func (h *ConversationHandler) HandleListQueries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListQueries(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR [ConversationHandler] HandleListQueries for UserID %s: %v", userID, err)
		respondServiceError(w, err, "Failed to list queries")
		return
	}

	resp := make([]models.ConversationQueryResponse, 0, len(items))
	for _, q := range items {
		resp = append(resp, toQueryResponse(q))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
