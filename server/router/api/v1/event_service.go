package v1

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/memory/recall"
	"github.com/hrygo/memoria/store"
)

type userEventsData struct {
	Events []*store.UserEvent `json:"events"`
}

// GetUserEvents lists the newest events of a user, optionally only the
// ones carrying a summary tip, trimmed to a token budget.
func (s *APIV1Service) GetUserEvents(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	topk, err := queryInt(c, "topk", 10)
	if err != nil {
		return respondError(c, err)
	}
	maxTokenSize, err := queryInt(c, "max_token_size", 0)
	if err != nil {
		return respondError(c, err)
	}
	needSummary, err := queryBool(c, "need_summary", false)
	if err != nil {
		return respondError(c, err)
	}

	events, err := s.Store.ListUserEvents(c.Request().Context(), &store.FindUserEvents{
		UserID:     userID,
		ProjectID:  requestProjectID(c),
		RequireTip: needSummary,
		Limit:      topk,
	})
	if err != nil {
		return respondError(c, err)
	}
	if maxTokenSize > 0 {
		events = recall.TruncateEvents(events, maxTokenSize)
	}
	if events == nil {
		events = []*store.UserEvent{}
	}
	return respond(c, &userEventsData{Events: events})
}

// UpdateUserEvent overlays the given fields onto the stored event
// document; absent fields keep their stored values.
func (s *APIV1Service) UpdateUserEvent(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	eventID, err := pathUUID(c, "eventID")
	if err != nil {
		return respondError(c, err)
	}
	var data store.EventData
	if err := c.Bind(&data); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed event body"))
	}

	found, err := s.Store.UpdateUserEvent(c.Request().Context(), &store.UpdateUserEvent{
		ID:        eventID,
		UserID:    userID,
		ProjectID: requestProjectID(c),
		Data:      data,
	})
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return respondError(c, errcode.New(errcode.NotFound, "event %s not found for user %s", eventID, userID))
	}
	return respond(c, nil)
}

func (s *APIV1Service) DeleteUserEvent(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	eventID, err := pathUUID(c, "eventID")
	if err != nil {
		return respondError(c, err)
	}

	found, err := s.Store.DeleteUserEvent(c.Request().Context(), &store.DeleteUserEvent{
		ID:        eventID,
		UserID:    userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return respondError(c, errcode.New(errcode.NotFound, "event %s not found for user %s", eventID, userID))
	}
	return respond(c, nil)
}

// SearchUserEvents runs a semantic similarity search over the user's
// recent events. Deployments without event embeddings refuse the call.
func (s *APIV1Service) SearchUserEvents(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return respondError(c, errcode.New(errcode.BadRequest, "query is required"))
	}
	topk, err := queryInt(c, "topk", 10)
	if err != nil {
		return respondError(c, err)
	}
	threshold, err := queryFloat(c, "similarity_threshold", 0.5)
	if err != nil {
		return respondError(c, err)
	}
	days, err := queryInt(c, "time_range_in_days", 7)
	if err != nil {
		return respondError(c, err)
	}

	events, err := s.Recall.SearchEvents(c.Request().Context(), userID, requestProjectID(c), query, topk, threshold, days)
	if err != nil {
		return respondError(c, err)
	}
	if events == nil {
		events = []*store.UserEvent{}
	}
	return respond(c, &userEventsData{Events: events})
}
