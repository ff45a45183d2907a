package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/store"
)

type upsertUserRequest struct {
	Data map[string]any `json:"data"`
	ID   *uuid.UUID     `json:"id,omitempty"`
}

type userData struct {
	Data      map[string]any `json:"data"`
	ID        uuid.UUID      `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *APIV1Service) CreateUser(c echo.Context) error {
	var req upsertUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed user body"))
	}

	user, err := s.Store.CreateUser(c.Request().Context(), &store.CreateUser{
		ID:        req.ID,
		ProjectID: requestProjectID(c),
		Fields:    req.Data,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, &idData{ID: user.ID.String()})
}

func (s *APIV1Service) GetUser(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{
		ID:        userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, errcode.New(errcode.NotFound, "user %s not found", userID))
	}
	return respond(c, &userData{
		Data:      user.Fields,
		ID:        user.ID,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func (s *APIV1Service) UpdateUser(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	var req upsertUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed user body"))
	}

	user, err := s.Store.UpdateUser(c.Request().Context(), &store.UpdateUser{
		ID:        userID,
		ProjectID: requestProjectID(c),
		Fields:    req.Data,
	})
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, errcode.New(errcode.NotFound, "user %s not found", userID))
	}
	return respond(c, &idData{ID: user.ID.String()})
}

func (s *APIV1Service) DeleteUser(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	found, err := s.Store.DeleteUser(c.Request().Context(), &store.DeleteUser{
		ID:        userID,
		ProjectID: requestProjectID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return respondError(c, errcode.New(errcode.NotFound, "user %s not found", userID))
	}
	return respond(c, nil)
}

// ListUserBlobs pages through the ids of a user's blobs of one type,
// oldest first.
func (s *APIV1Service) ListUserBlobs(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	blobType, err := pathBlobType(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := queryInt(c, "page", 0)
	if err != nil {
		return respondError(c, err)
	}
	pageSize, err := queryInt(c, "page_size", 10)
	if err != nil {
		return respondError(c, err)
	}

	ids, err := s.Store.ListBlobIDs(c.Request().Context(), &store.FindBlobIDs{
		UserID:    userID,
		ProjectID: requestProjectID(c),
		Type:      blobType,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return respondError(c, err)
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return respond(c, &idsData{IDs: out})
}
