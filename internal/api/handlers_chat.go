package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/synapta-ai/synapta/internal/api/respond"
	"github.com/synapta-ai/synapta/internal/model"
)

// ChatService answers one grounded question.
type ChatService interface {
	Answer(ctx context.Context, question string) (*model.ChatResponse, error)
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(c ChatService) *ChatHandler {
	return &ChatHandler{chat: c}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat answers a question from the synced knowledge graph. Deadline overruns
// surface as 504 so the UI can distinguish "slow" from "broken".
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respond.WriteBadRequest(w, "message is required")
		return
	}

	resp, err := h.chat.Answer(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, model.ErrAnswerTimeout) {
			respond.WriteGatewayTimeout(w, "answer generation timed out")
			return
		}
		log.Error().Err(err).Msg("chat answer failed")
		respond.WriteInternalError(w, "failed to answer question")
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}
