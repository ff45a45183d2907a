package v1

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/memory/recall"
	"github.com/hrygo/memoria/store"
)

type userProfilesData struct {
	Profiles []*store.UserProfile `json:"profiles"`
}

// profileDelta is the write shape for a single profile slot. Attributes
// may be omitted on update to keep the stored topic pair.
type profileDelta struct {
	Content    string                   `json:"content"`
	Attributes *store.ProfileAttributes `json:"attributes,omitempty"`
}

type userContextImport struct {
	Context string `json:"context"`
}

// GetUserProfiles returns the user's profile slots, optionally filtered
// by chat relevance and cut down to the caller's topic and token limits.
func (s *APIV1Service) GetUserProfiles(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	projectID := requestProjectID(c)

	topk, err := queryInt(c, "topk", 0)
	if err != nil {
		return respondError(c, err)
	}
	maxTokenSize, err := queryInt(c, "max_token_size", 0)
	if err != nil {
		return respondError(c, err)
	}
	maxSubtopicSize, err := queryInt(c, "max_subtopic_size", 0)
	if err != nil {
		return respondError(c, err)
	}
	preferTopics := queryStrings(c, "prefer_topics")
	onlyTopics := queryStrings(c, "only_topics")

	topicLimits := map[string]int{}
	if raw := strings.TrimSpace(c.QueryParam("topic_limits_json")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &topicLimits); err != nil {
			return respondError(c, errcode.Wrap(err, errcode.BadRequest, "invalid topic_limits_json"))
		}
	}
	var chats []store.Message
	if raw := strings.TrimSpace(c.QueryParam("chats_str")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &chats); err != nil {
			return respondError(c, errcode.Wrap(err, errcode.BadRequest, "invalid chats_str"))
		}
	}

	profiles, err := s.Store.ListUserProfiles(ctx, &store.FindUserProfiles{
		UserID:    userID,
		ProjectID: projectID,
	})
	if err != nil {
		return respondError(c, err)
	}

	if len(chats) > 0 {
		picked, err := s.Recall.PickRelatedProfiles(ctx, projectID, profiles, chats, onlyTopics)
		if err != nil {
			slog.Warn("unable to pick related profiles, keeping all of them", "user_id", userID, "error", err)
		} else {
			profiles = picked
		}
	}

	profiles = recall.TruncateProfiles(profiles, recall.TruncateOptions{
		PreferTopics:    preferTopics,
		OnlyTopics:      onlyTopics,
		TopK:            topk,
		MaxTokenSize:    maxTokenSize,
		MaxSubtopicSize: maxSubtopicSize,
		TopicLimits:     topicLimits,
	})
	if profiles == nil {
		profiles = []*store.UserProfile{}
	}
	return respond(c, &userProfilesData{Profiles: profiles})
}

func (s *APIV1Service) AddUserProfile(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	var req profileDelta
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed profile body"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return respondError(c, errcode.New(errcode.BadRequest, "profile content is required"))
	}
	if req.Attributes == nil || req.Attributes.Topic == "" || req.Attributes.SubTopic == "" {
		return respondError(c, errcode.New(errcode.BadRequest, "profile attributes need topic and sub_topic"))
	}

	ids, err := s.Store.CreateUserProfiles(c.Request().Context(), []*store.CreateUserProfile{{
		UserID:     userID,
		ProjectID:  requestProjectID(c),
		Content:    req.Content,
		Attributes: *req.Attributes,
	}})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, &idData{ID: ids[0].String()})
}

func (s *APIV1Service) UpdateUserProfile(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	profileID, err := pathUUID(c, "profileID")
	if err != nil {
		return respondError(c, err)
	}
	var req profileDelta
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed profile body"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return respondError(c, errcode.New(errcode.BadRequest, "profile content is required"))
	}

	found, err := s.Store.UpdateUserProfile(c.Request().Context(), &store.UpdateUserProfile{
		ID:         profileID,
		UserID:     userID,
		ProjectID:  requestProjectID(c),
		Content:    req.Content,
		Attributes: req.Attributes,
	})
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return respondError(c, errcode.New(errcode.NotFound, "profile %s not found for user %s", profileID, userID))
	}
	return respond(c, nil)
}

func (s *APIV1Service) DeleteUserProfile(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	profileID, err := pathUUID(c, "profileID")
	if err != nil {
		return respondError(c, err)
	}

	deleted, err := s.Store.DeleteUserProfiles(c.Request().Context(), &store.DeleteUserProfiles{
		IDs:       []uuid.UUID{profileID},
		UserID:    userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	if deleted == 0 {
		return respondError(c, errcode.New(errcode.NotFound, "profile %s not found for user %s", profileID, userID))
	}
	return respond(c, nil)
}

// ImportUserContext replays an exported context block through the chat
// pipeline: the buffer is flushed, the block goes in as a single user
// message, and the lane is flushed again so the import lands in one
// isolated batch.
func (s *APIV1Service) ImportUserContext(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	projectID := requestProjectID(c)

	var req userContextImport
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed import body"))
	}
	if strings.TrimSpace(req.Context) == "" {
		return respondError(c, errcode.New(errcode.BadRequest, "context is required"))
	}

	billing, err := s.resolveBilling(ctx, projectID)
	if err != nil {
		return respondError(c, err)
	}
	if billing.TokenLeft != nil && *billing.TokenLeft < 0 {
		return respondError(c, errcode.New(errcode.ServiceUnavailable,
			"project token quota exhausted: left %d, used %d this month, refills at %s",
			*billing.TokenLeft, billing.ProjectTokenCostMonth, billing.NextRefillAt.Format(time.RFC3339)))
	}

	if _, err := s.Buffer.Flush(ctx, userID, projectID, store.BlobTypeChat); err != nil {
		return respondError(c, err)
	}

	blob, err := s.Store.CreateBlob(ctx, &store.CreateBlob{
		UserID:    userID,
		ProjectID: projectID,
		Type:      store.BlobTypeChat,
		Payload: store.BlobPayload{
			Messages: []store.Message{{
				Role:    "user",
				Content: "Below is my information, please remember them:\n" + req.Context,
			}},
		},
	})
	if err != nil {
		return respondError(c, err)
	}
	if _, err := s.Buffer.InsertBlob(ctx, blob); err != nil {
		return respondError(c, err)
	}
	if _, err := s.Buffer.Flush(ctx, userID, projectID, store.BlobTypeChat); err != nil {
		return respondError(c, err)
	}
	return respond(c, nil)
}
