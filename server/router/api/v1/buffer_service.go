package v1

import (
	"github.com/labstack/echo/v4"
)

// FlushBuffer forces the user's buffer lane through the extraction
// pipeline regardless of the idle and size triggers. The response
// carries one pipeline result per flushed batch.
func (s *APIV1Service) FlushBuffer(c echo.Context) error {
	userID, err := pathUUID(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	blobType, err := pathBlobType(c)
	if err != nil {
		return respondError(c, err)
	}

	results, err := s.Buffer.Flush(c.Request().Context(), userID, requestProjectID(c), blobType)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, results)
}
