package streaming

import (
	"fmt"
	"math/rand"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanResponseNoRange(t *testing.T) {
	t.Parallel()

	plan, err := PlanResponse(1024000, "", "video/mp4")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, plan.StatusCode)
	require.False(t, plan.Partial)
	require.Equal(t, int64(1024000), plan.ContentLength)

	h := http.Header{}
	plan.SetHeaders(h)
	require.Equal(t, "1024000", h.Get("Content-Length"))
	require.Equal(t, "video/mp4", h.Get("Content-Type"))
	require.Empty(t, h.Get("Content-Range"))
	require.Empty(t, h.Get("Accept-Ranges"))
}

func TestPlanResponseDefaultEnd(t *testing.T) {
	t.Parallel()

	plan, err := PlanResponse(1024000, "bytes=512-", "video/webm")
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, plan.StatusCode)
	require.True(t, plan.Partial)
	require.Equal(t, int64(512), plan.Start)
	require.Equal(t, int64(1023999), plan.End)
	require.Equal(t, int64(1023488), plan.ContentLength)

	h := http.Header{}
	plan.SetHeaders(h)
	require.Equal(t, "bytes 512-1023999/1024000", h.Get("Content-Range"))
	require.Equal(t, "bytes", h.Get("Accept-Ranges"))
	require.Equal(t, "1023488", h.Get("Content-Length"))
	require.Equal(t, "video/webm", h.Get("Content-Type"))
}

func TestPlanResponseArithmetic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		size := rng.Int63n(1<<40) + 1
		start := rng.Int63n(size)
		end := start + rng.Int63n(size-start)

		plan, err := PlanResponse(size, fmt.Sprintf("bytes=%d-%d", start, end), "video/mp4")
		require.NoError(t, err)
		require.Equal(t, start, plan.Start)
		require.Equal(t, end, plan.End)
		require.Equal(t, end-start+1, plan.ContentLength)
		require.Equal(t, fmt.Sprintf("bytes %d-%d/%d", start, end, size), plan.ContentRange())
		require.LessOrEqual(t, plan.End, size-1)
	}
}

func TestPlanResponseClampsEnd(t *testing.T) {
	t.Parallel()

	plan, err := PlanResponse(100, "bytes=90-500", "video/mp4")
	require.NoError(t, err)
	require.Equal(t, int64(99), plan.End)
	require.Equal(t, int64(10), plan.ContentLength)
}

func TestPlanResponseMalformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"invalid-range-format",
		"bytes=",
		"bytes=-",
		"bytes=-100",
		"bytes=abc-10",
		"bytes=10-abc",
		"bytes=+1-5",
		"bytes=20-10",
		"bytes=0-1,5-6",
		"items=0-10",
		"bytes=1000-",
		"bytes=1000-1001",
	}
	for _, header := range cases {
		_, err := PlanResponse(1000, header, "video/mp4")
		require.ErrorIs(t, err, ErrMalformedRange, header)
	}
}

func TestPlanResponseEmptyFileRejectsRange(t *testing.T) {
	t.Parallel()

	_, err := PlanResponse(0, "bytes=0-", "video/mp4")
	require.ErrorIs(t, err, ErrMalformedRange)

	plan, err := PlanResponse(0, "", "video/mp4")
	require.NoError(t, err)
	require.Equal(t, int64(0), plan.ContentLength)
}
