package v1

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/memory/recall"
	"github.com/hrygo/memoria/store"
)

type contextData struct {
	Context string `json:"context"`
}

// GetUserContext assembles the prompt-ready memory block for a user:
// profile slots first, recent or semantically matching events in the
// remaining budget.
func (s *APIV1Service) GetUserContext(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	params := recall.DefaultParams()
	if params.MaxTokenSize, err = queryInt(c, "max_token_size", params.MaxTokenSize); err != nil {
		return respondError(c, err)
	}
	if params.MaxSubtopicSize, err = queryInt(c, "max_subtopic_size", 0); err != nil {
		return respondError(c, err)
	}
	if params.ProfileEventRatio, err = queryFloat(c, "profile_event_ratio", params.ProfileEventRatio); err != nil {
		return respondError(c, err)
	}
	if params.RequireEventSummary, err = queryBool(c, "require_event_summary", false); err != nil {
		return respondError(c, err)
	}
	if params.EventSimilarityThreshold, err = queryFloat(c, "event_similarity_threshold", params.EventSimilarityThreshold); err != nil {
		return respondError(c, err)
	}
	params.PreferTopics = queryStrings(c, "prefer_topics")
	params.OnlyTopics = queryStrings(c, "only_topics")

	params.TopicLimits = map[string]int{}
	if raw := strings.TrimSpace(c.QueryParam("topic_limits_json")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params.TopicLimits); err != nil {
			return respondError(c, errcode.Wrap(err, errcode.BadRequest, "invalid topic_limits_json"))
		}
	}
	if raw := strings.TrimSpace(c.QueryParam("chats_str")); raw != "" {
		var chats []store.Message
		if err := json.Unmarshal([]byte(raw), &chats); err != nil {
			return respondError(c, errcode.Wrap(err, errcode.BadRequest, "invalid chats_str"))
		}
		params.Chats = chats
	}

	context, err := s.Recall.Context(c.Request().Context(), userID, requestProjectID(c), params)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, &contextData{Context: context})
}
