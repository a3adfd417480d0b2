package scraper

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserAgentRotator(t *testing.T) {
	t.Parallel()

	r := NewUserAgentRotator("agent-a", "agent-b")
	assert.Equal(t, "agent-a", r.Next())
	assert.Equal(t, "agent-b", r.Next())
	assert.Equal(t, "agent-a", r.Next())

	random := r.Random()
	assert.Contains(t, []string{"agent-a", "agent-b"}, random)
}

func TestUserAgentRotatorDefaults(t *testing.T) {
	t.Parallel()

	r := NewUserAgentRotator()
	assert.Contains(t, r.Next(), "Mozilla/5.0")
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	h := NewBotDetectionHandler(nil, zap.NewNop())

	respWithPath := func(status int, path string) *http.Response {
		return &http.Response{
			StatusCode: status,
			Request:    &http.Request{URL: &url.URL{Path: path}},
		}
	}

	assert.False(t, h.IsBlocked(nil))
	assert.True(t, h.IsBlocked(respWithPath(http.StatusForbidden, "/zoeken")))
	assert.True(t, h.IsBlocked(respWithPath(http.StatusTooManyRequests, "/zoeken")))
	assert.True(t, h.IsBlocked(respWithPath(http.StatusOK, "/Captcha/verify")))
	assert.False(t, h.IsBlocked(respWithPath(http.StatusOK, "/zoeken")))
	assert.False(t, h.IsBlocked(respWithPath(http.StatusNotFound, "/zoeken")))
}

func TestHandleBlockEscalation(t *testing.T) {
	t.Parallel()

	h := NewBotDetectionHandler(NewUserAgentRotator("agent-a", "agent-b"), zap.NewNop())
	blocked := &http.Response{StatusCode: http.StatusForbidden}

	// First block rotates the User-Agent only.
	headers, err := h.HandleBlock(context.Background(), blocked, 0)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", headers.Get("User-Agent"))
	assert.Empty(t, headers.Get("Accept-Language"))

	// Second block adds a full browser header set.
	headers, err = h.HandleBlock(context.Background(), blocked, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, headers.Get("User-Agent"))
	assert.Contains(t, headers.Get("Accept-Language"), "nl-NL")
	assert.Equal(t, "1", headers.Get("Upgrade-Insecure-Requests"))

	assert.Equal(t, 2, h.BlockCount())
	_, ok := h.LastBlock()
	assert.True(t, ok)
}

func TestHandleBlockPenaltyCanceled(t *testing.T) {
	t.Parallel()

	h := NewBotDetectionHandler(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.HandleBlock(ctx, &http.Response{StatusCode: http.StatusForbidden}, 2)
	require.ErrorIs(t, err, context.Canceled)
}
