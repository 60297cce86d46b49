// Package interactions receives control-panel callbacks from the bot gateway
// and turns them into typed channel mutations.
package interactions

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voicehub/backend/internal/voice"
	"github.com/voicehub/backend/pkg/response"
)

// Handler serves the gateway interaction endpoint.
type Handler struct {
	dispatcher *voice.Dispatcher
	logger     *zap.Logger
}

// NewHandler creates the interactions handler.
func NewHandler(dispatcher *voice.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

type interactionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
	TargetID string `json:"target_id"`
	Value    string `json:"value"`
}

// Handle parses one panel interaction, dispatches it and reports the outcome.
func (h *Handler) Handle(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and action are required")
		return
	}

	mutation, err := buildMutation(req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.dispatcher.Do(c.Request.Context(), req.UserID, mutation)
	if err != nil {
		h.writeError(c, req, err)
		return
	}
	response.OK(c, result)
}

// buildMutation maps the gateway's action string to a typed mutation. The
// free-text value field is validated here so the dispatcher only ever sees
// well-formed payloads.
func buildMutation(req interactionRequest) (voice.Mutation, error) {
	switch req.Action {
	case "rename":
		return voice.Rename{Name: req.Value}, nil
	case "limit":
		limit, err := strconv.Atoi(req.Value)
		if err != nil {
			return nil, errors.New("limit must be a number")
		}
		return voice.SetLimit{Limit: limit}, nil
	case "lock":
		return voice.ToggleLock{}, nil
	case "kick":
		if req.TargetID == "" {
			return nil, errors.New("kick requires a target")
		}
		return voice.Kick{TargetID: req.TargetID}, nil
	case "transfer":
		if req.TargetID == "" {
			return nil, errors.New("transfer requires a target")
		}
		return voice.Transfer{TargetID: req.TargetID}, nil
	case "block":
		if req.TargetID == "" {
			return nil, errors.New("block requires a target")
		}
		return voice.Block{TargetID: req.TargetID}, nil
	case "unblock":
		if req.TargetID == "" {
			return nil, errors.New("unblock requires a target")
		}
		return voice.Unblock{TargetID: req.TargetID}, nil
	case "invite":
		if req.TargetID == "" {
			return nil, errors.New("invite requires a target")
		}
		return voice.Invite{TargetID: req.TargetID}, nil
	default:
		return nil, errors.New("unknown action")
	}
}

func (h *Handler) writeError(c *gin.Context, req interactionRequest, err error) {
	var (
		validation  *voice.ValidationError
		authz       *voice.AuthorizationError
		notFound    *voice.NotFoundError
		rateLimited *voice.RateLimitedError
	)
	switch {
	case errors.As(err, &validation):
		response.BadRequest(c, validation.Error())
	case errors.As(err, &authz):
		response.Forbidden(c, authz.Error())
	case errors.As(err, &notFound):
		response.NotFound(c, notFound.Error())
	case errors.As(err, &rateLimited):
		response.TooManyRequests(c, rateLimited.Error())
	default:
		h.logger.Error("interaction failed",
			zap.String("user_id", req.UserID),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		response.Internal(c, "something went wrong, please try again")
	}
}
