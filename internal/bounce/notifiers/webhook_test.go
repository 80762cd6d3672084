package notifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	frame  bounce.Frame
	header http.Header
}

func TestWebhookNotifier(t *testing.T) {
	deliveries := make(chan delivery, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := delivery{header: r.Header.Clone()}
		_ = json.NewDecoder(r.Body).Decode(&d.frame)
		deliveries <- d
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier("test-webhook", srv.URL)
	notifier.SetHeader("Authorization", "Bearer token")

	assert.Equal(t, "test-webhook", notifier.ID())
	assert.Equal(t, "webhook", notifier.Type())
	assert.Equal(t, srv.URL, notifier.URL())

	frame := testFrame("sim", 4)
	require.NoError(t, notifier.Notify(context.Background(), frame))

	d := <-deliveries
	assert.Equal(t, "Bearer token", d.header.Get("Authorization"))
	assert.Equal(t, "application/json", d.header.Get("Content-Type"))
	assert.Equal(t, "sim", d.header.Get(HeaderSimulationID))
	assert.Equal(t, "4", d.header.Get(HeaderTick))
	assert.Equal(t, fmt.Sprintf("%016x", frame.Digest), d.header.Get(HeaderDigest))
	assert.Equal(t, frame, d.frame)
	assert.NoError(t, notifier.Close())
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier("test", srv.URL)
	err := notifier.Notify(context.Background(), testFrame("sim", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	notifier := NewWebhookNotifier("test", url)
	assert.Error(t, notifier.Notify(context.Background(), testFrame("sim", 1)))
}

func TestWebhookNotifier_FiltersFrames(t *testing.T) {
	deliveries := make(chan delivery, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := delivery{header: r.Header.Clone()}
		_ = json.NewDecoder(r.Body).Decode(&d.frame)
		deliveries <- d
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier("filtered", srv.URL)
	notifier.SetSimulation("a")
	require.NoError(t, notifier.SetEvery(3))

	ctx := context.Background()
	for tick := int64(0); tick <= 6; tick++ {
		require.NoError(t, notifier.Notify(ctx, testFrame("a", tick)))
		require.NoError(t, notifier.Notify(ctx, testFrame("b", tick)))
	}
	close(deliveries)

	var ticks []int64
	for d := range deliveries {
		assert.Equal(t, bounce.SimulationID("a"), d.frame.SimulationID)
		ticks = append(ticks, d.frame.Tick)
	}
	assert.Equal(t, []int64{0, 3, 6}, ticks)
}

func TestWebhookNotifier_SetEveryRejectsZero(t *testing.T) {
	notifier := NewWebhookNotifier("hook", "http://example.test")
	assert.Error(t, notifier.SetEvery(0))
	assert.True(t, notifier.Accepts(testFrame("any", 5)))
}
