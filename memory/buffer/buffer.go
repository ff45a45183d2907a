// Package buffer implements the per-user write-behind queue between
// blob ingestion and the flush pipeline. Appends are cheap; the
// expensive digestion runs only when a lane goes idle, overflows its
// token budget, or a caller forces it.
package buffer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/memory/flush"
	"github.com/hrygo/memoria/memory/lock"
	"github.com/hrygo/memoria/store"
)

// lockScope serializes every buffer mutation of one user, so appends
// and flushes are totally ordered process-wide.
const lockScope = "insert_blob_to_buffer"

// Pipeline digests a captured batch of chat blobs.
type Pipeline interface {
	FlushChats(ctx context.Context, userID uuid.UUID, projectID string, blobs []*store.Blob) (*flush.Response, error)
}

// Locker hands out the per-user lock buffer work runs under.
type Locker interface {
	AcquireUserLock(ctx context.Context, scope string, userID uuid.UUID) (*lock.Handle, error)
}

// Storage is the slice of the store the buffer touches.
type Storage interface {
	CreateBufferEntry(ctx context.Context, create *store.CreateBufferEntry) (*store.BufferEntry, error)
	LatestBufferCreatedAt(ctx context.Context, find *store.FindBuffer) (*time.Time, error)
	SumBufferTokenSize(ctx context.Context, find *store.FindBuffer) (int, error)
	ListBufferEntries(ctx context.Context, find *store.FindBuffer) ([]*store.BufferEntry, error)
	DeleteBufferEntries(ctx context.Context, find *store.FindBuffer) error
	ListBlobs(ctx context.Context, projectID string, ids []uuid.UUID) ([]*store.Blob, error)
	DeleteBlobs(ctx context.Context, projectID string, ids []uuid.UUID) error
}

// Controller owns the buffer lanes of all users.
type Controller struct {
	profile *profile.Profile
	store   Storage
	locker  Locker
	flusher Pipeline
}

func New(p *profile.Profile, st Storage, locker Locker, flusher Pipeline) *Controller {
	return &Controller{
		profile: p,
		store:   st,
		locker:  locker,
		flusher: flusher,
	}
}

// InsertBlob parks a stored blob in its buffer lane. The idle trigger
// runs before the append so a stale lane is digested as its own
// session; the size trigger runs after. Every flush the insert set off
// is reported in order.
func (c *Controller) InsertBlob(ctx context.Context, blob *store.Blob) ([]*flush.Response, error) {
	userLock, err := c.locker.AcquireUserLock(ctx, lockScope, blob.UserID)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.GatewayTimeout, "user buffer is busy")
	}
	defer userLock.Release(ctx)

	find := &store.FindBuffer{UserID: blob.UserID, ProjectID: blob.ProjectID, BlobType: blob.Type}
	responses := []*flush.Response{}

	// Only chat lanes are digestible; other lanes just accumulate.
	if blob.Type == store.BlobTypeChat {
		latest, err := c.store.LatestBufferCreatedAt(ctx, find)
		if err != nil {
			return nil, err
		}
		idle := time.Duration(c.profile.BufferFlushInterval) * time.Second
		if latest != nil && time.Since(*latest) > idle {
			slog.Info("buffer lane idle, flushing previous session", "user_id", blob.UserID, "blob_type", blob.Type)
			resp, err := c.flushLane(ctx, find)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				responses = append(responses, resp)
			}
		}
	}

	tokenSize := tokenizer.CountTokens(blob.Transcript(c.profile.Timezone()))
	if _, err := c.store.CreateBufferEntry(ctx, &store.CreateBufferEntry{
		UserID:    blob.UserID,
		ProjectID: blob.ProjectID,
		BlobID:    blob.ID,
		BlobType:  blob.Type,
		TokenSize: tokenSize,
	}); err != nil {
		return nil, err
	}

	if blob.Type == store.BlobTypeChat {
		total, err := c.store.SumBufferTokenSize(ctx, find)
		if err != nil {
			return nil, err
		}
		if total > c.profile.MaxChatBlobBufferTokenSize {
			slog.Info("buffer lane over capacity, flushing", "user_id", blob.UserID, "token_size", total)
			resp, err := c.flushLane(ctx, find)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				responses = append(responses, resp)
			}
		}
	}
	return responses, nil
}

// Flush digests whatever is pending in one lane right now. An empty
// lane is a no-op with an empty result.
func (c *Controller) Flush(ctx context.Context, userID uuid.UUID, projectID string, blobType store.BlobType) ([]*flush.Response, error) {
	userLock, err := c.locker.AcquireUserLock(ctx, lockScope, userID)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.GatewayTimeout, "user buffer is busy")
	}
	defer userLock.Release(ctx)

	resp, err := c.flushLane(ctx, &store.FindBuffer{UserID: userID, ProjectID: projectID, BlobType: blobType})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return []*flush.Response{}, nil
	}
	return []*flush.Response{resp}, nil
}

// flushLane captures a lane's entries, runs the pipeline over their
// blobs, and clears what was captured. Clearing happens even when the
// pipeline fails so a poisoned batch cannot wedge the lane; the
// pipeline error still wins over cleanup errors.
func (c *Controller) flushLane(ctx context.Context, find *store.FindBuffer) (*flush.Response, error) {
	if find.BlobType != store.BlobTypeChat {
		return nil, errcode.New(errcode.BadRequest, "%s buffers cannot be flushed", find.BlobType)
	}
	entries, err := c.store.ListBufferEntries(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		slog.Info("buffer lane is empty, nothing to flush", "user_id", find.UserID, "blob_type", find.BlobType)
		return nil, nil
	}

	blobIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		blobIDs = append(blobIDs, e.BlobID)
	}
	blobs, err := c.store.ListBlobs(ctx, find.ProjectID, blobIDs)
	if err != nil {
		return nil, err
	}

	resp, flushErr := c.flusher.FlushChats(ctx, find.UserID, find.ProjectID, blobs)
	if flushErr != nil {
		slog.Error("flush pipeline failed, clearing the lane anyway", "user_id", find.UserID, "error", flushErr)
	}

	cleanupErr := c.store.DeleteBufferEntries(ctx, find)
	if cleanupErr != nil {
		slog.Error("failed to clear flushed buffer lane", "user_id", find.UserID, "error", cleanupErr)
	}
	var blobErr error
	if !c.profile.PersistentChatBlobs {
		if blobErr = c.store.DeleteBlobs(ctx, find.ProjectID, blobIDs); blobErr != nil {
			slog.Error("failed to delete flushed chat blobs", "user_id", find.UserID, "error", blobErr)
		}
	}

	if flushErr != nil {
		return nil, flushErr
	}
	if cleanupErr != nil {
		return nil, cleanupErr
	}
	if blobErr != nil {
		return nil, blobErr
	}
	return resp, nil
}
