package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
)

func TestRecordUpdateSplitsCauses(t *testing.T) {
	m := New()
	at := time.Unix(1_700_000_000, 0)

	m.RecordUpdate(detection.Update{Set: detection.Set{{HealthScore: 10}}, Source: detection.SourceLive, At: at})
	m.RecordUpdate(detection.Update{Set: detection.Simulate(at), Source: detection.SourceSimulated, Cause: feed.ErrEmptyFeed})
	m.RecordUpdate(detection.Update{Set: detection.Simulate(at), Source: detection.SourceSimulated,
		Cause: fmt.Errorf("%w: status 502", feed.ErrFeedUnavailable)})

	assert.Equal(t, uint64(3), m.Polls.Load())
	assert.Equal(t, uint64(1), m.LiveSets.Load())
	assert.Equal(t, uint64(2), m.SimulatedSets.Load())
	assert.Equal(t, uint64(1), m.EmptyFeed.Load())
	assert.Equal(t, uint64(1), m.FeedUnavailable.Load())
	assert.Equal(t, uint64(3), m.Detections.Load())
	assert.Equal(t, uint64(1), m.AtRisk.Load())
	assert.True(t, m.LastLive().Equal(at))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	assert.True(t, m.LastLive().IsZero())
	m.SetPlaying(true)
	m.RecordRedraw(1500 * time.Microsecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "overlay_playing 1")
	assert.Contains(t, text, "overlay_redraws_total 1")
	assert.Contains(t, text, "overlay_render_latency_us 1500")
	assert.Contains(t, text, "overlay_feed_simulated_sets_total 0")
}
