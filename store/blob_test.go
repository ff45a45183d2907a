package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatBlobTranscript(t *testing.T) {
	created := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	blob := &Blob{
		Type:      BlobTypeChat,
		CreatedAt: created,
		Payload: BlobPayload{
			Messages: []Message{
				{Role: "user", Content: "I just moved to Tokyo"},
				{Role: "assistant", Content: "How exciting!", Alias: "Melinda"},
				{Role: "user", Content: "Start a new job tomorrow", CreatedAt: "2025/03/15"},
			},
		},
	}

	got := blob.Transcript(time.UTC)
	want := "[2025/03/14] user: I just moved to Tokyo\n" +
		"[2025/03/14] Melinda(assistant): How exciting!\n" +
		"[2025/03/15] user: Start a new job tomorrow"
	assert.Equal(t, want, got)
}

func TestChatBlobTranscriptUsesTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 23:00 UTC on the 14th is already the 15th in Tokyo.
	blob := &Blob{
		Type:      BlobTypeChat,
		CreatedAt: time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC),
		Payload:   BlobPayload{Messages: []Message{{Role: "user", Content: "hi"}}},
	}

	assert.Equal(t, "[2025/03/15] user: hi", blob.Transcript(tokyo))
}

func TestDocBlobTranscript(t *testing.T) {
	blob := &Blob{
		Type:    BlobTypeDoc,
		Payload: BlobPayload{Content: "Meeting notes from the quarterly review."},
	}
	assert.Equal(t, "Meeting notes from the quarterly review.", blob.Transcript(time.UTC))
}

func TestTranscriptUnsupportedType(t *testing.T) {
	blob := &Blob{Type: BlobTypeImage}
	assert.Empty(t, blob.Transcript(time.UTC))
}

func TestParseBlobType(t *testing.T) {
	for _, valid := range []string{"chat", "doc", "image", "code", "transcript"} {
		bt, ok := ParseBlobType(valid)
		assert.True(t, ok)
		assert.Equal(t, BlobType(valid), bt)
	}

	_, ok := ParseBlobType("video")
	assert.False(t, ok)
}
