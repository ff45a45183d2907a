package v1

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/memory/flush"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/store/cache"
)

type blobBody struct {
	BlobType string            `json:"blob_type"`
	BlobData store.BlobPayload `json:"blob_data"`
	Fields   map[string]any    `json:"fields,omitempty"`
}

type blobData struct {
	BlobType  store.BlobType    `json:"blob_type"`
	BlobData  store.BlobPayload `json:"blob_data"`
	Fields    map[string]any    `json:"fields,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

// blobInsertData acknowledges the stored blob id plus the pipeline
// results of any flush the insert triggered. ChatResults stays null
// when the blob only accumulated in the buffer.
type blobInsertData struct {
	ID          string            `json:"id"`
	ChatResults []*flush.Response `json:"chat_results"`
}

// InsertBlob stores a raw blob and pushes it through the write-behind
// buffer. The call is refused up front when the project has burned
// through its token quota.
func (s *APIV1Service) InsertBlob(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := requestProjectID(c)
	kv := s.Store.GetCache()
	kv.IncrCounter(ctx, projectID, cache.CounterInsertBlobRequest, 1)

	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
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

	var req blobBody
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed blob body"))
	}
	blobType, ok := store.ParseBlobType(req.BlobType)
	if !ok {
		return respondError(c, errcode.New(errcode.BadRequest, "unknown blob type %q", req.BlobType))
	}
	switch blobType {
	case store.BlobTypeChat:
		if len(req.BlobData.Messages) == 0 {
			return respondError(c, errcode.New(errcode.BadRequest, "chat blob needs at least one message"))
		}
	case store.BlobTypeDoc:
		if req.BlobData.Content == "" {
			return respondError(c, errcode.New(errcode.BadRequest, "doc blob needs content"))
		}
	default:
		return respondError(c, errcode.New(errcode.NotImplemented, "blob type %s is not supported yet", blobType))
	}

	blob, err := s.Store.CreateBlob(ctx, &store.CreateBlob{
		UserID:    userID,
		ProjectID: projectID,
		Type:      blobType,
		Payload:   req.BlobData,
		Fields:    req.Fields,
	})
	if err != nil {
		return respondError(c, err)
	}

	results, err := s.Buffer.InsertBlob(ctx, blob)
	if err != nil {
		return respondError(c, err)
	}

	kv.IncrCounter(ctx, projectID, cache.CounterInsertBlobSuccessRequest, 1)
	return respond(c, &blobInsertData{ID: blob.ID.String(), ChatResults: results})
}

func (s *APIV1Service) GetBlob(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	blobID, err := pathUUID(c, "blobID")
	if err != nil {
		return respondError(c, err)
	}

	blob, err := s.Store.GetBlob(c.Request().Context(), &store.FindBlob{
		ID:        blobID,
		UserID:    userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	if blob == nil {
		return respondError(c, errcode.New(errcode.NotFound, "blob %s not found", blobID))
	}
	return respond(c, &blobData{
		BlobType:  blob.Type,
		BlobData:  blob.Payload,
		Fields:    blob.Fields,
		CreatedAt: &blob.CreatedAt,
		UpdatedAt: &blob.UpdatedAt,
	})
}

// DeleteBlob removes a stored blob. Deleting an unknown blob succeeds;
// buffered references to it fall out naturally on the next flush.
func (s *APIV1Service) DeleteBlob(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	blobID, err := pathUUID(c, "blobID")
	if err != nil {
		return respondError(c, err)
	}

	err = s.Store.DeleteBlob(c.Request().Context(), &store.DeleteBlob{
		ID:        blobID,
		UserID:    userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, nil)
}
