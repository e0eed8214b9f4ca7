package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/api"
	"vidsentry/internal/detection"
	"vidsentry/internal/logging"
	"vidsentry/internal/persistence"
	"vidsentry/internal/testsupport"
)

type removerFunc func(ctx context.Context, filename string) (bool, error)

func (f removerFunc) Remove(ctx context.Context, filename string) (bool, error) {
	return f(ctx, filename)
}

type fixture struct {
	router http.Handler
	coord  *persistence.Coordinator
}

func newFixture(t *testing.T, token string) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	coord := persistence.New(st, cfg.Paths.ArtifactDir, logging.NewNop())

	ctx := context.Background()
	id, err := coord.CreatePlaceholder(ctx, "cam.mp4")
	require.NoError(t, err)
	frames := []detection.FrameRecord{
		detection.NewFrameRecord(1, testsupport.Detections("person", 1, 0.9)),
		detection.NewFrameRecord(2, nil),
	}
	require.NoError(t, coord.Commit(ctx, id, detection.NewArtifact("cam.mp4", frames), detection.Summarize(frames)))
	_, err = coord.CreatePlaceholder(ctx, "inflight.mp4")
	require.NoError(t, err)

	router := api.NewRouter(api.ServerConfig{
		Token:  token,
		Videos: api.NewVideoService(st, coord),
		Status: func(context.Context) api.DaemonStatus {
			return api.DaemonStatus{Running: true, WatchDir: cfg.Paths.WatchDir}
		},
		Remover: removerFunc(coord.DeleteByFilename),
	})
	return fixture{router: router, coord: coord}
}

func (f fixture) do(t *testing.T, method, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListVideos(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/videos")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[api.VideoListResponse](t, rec)
	require.Len(t, resp.Items, 2)
	byName := map[string]api.Video{}
	for _, item := range resp.Items {
		byName[item.Filename] = item
	}
	assert.Equal(t, api.VideoStatusCompleted, byName["cam.mp4"].Status)
	assert.Equal(t, []string{"person"}, byName["cam.mp4"].ClassesDetected)
	assert.Equal(t, map[string]int{"person": 1}, byName["cam.mp4"].MaxCountPerFrame)
	assert.NotEmpty(t, byName["cam.mp4"].DetectedAt)
	assert.Equal(t, api.VideoStatusPending, byName["inflight.mp4"].Status)
	assert.Equal(t, []string{}, byName["inflight.mp4"].ClassesDetected)
}

func TestGetVideoDetail(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/videos/cam.mp4")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[api.VideoResponse](t, rec)
	assert.Equal(t, "cam.mp4", resp.Video.Filename)
	assert.Equal(t, f.coord.ArtifactPath("cam.mp4"), resp.Video.ArtifactPath)
	assert.Equal(t, 2, resp.Video.TotalFrames)
	assert.Equal(t, 1, resp.Video.FramesWithObjects)
}

func TestGetVideoPendingHasNoArtifact(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/videos/inflight.mp4")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[api.VideoResponse](t, rec)
	assert.Equal(t, api.VideoStatusPending, resp.Video.Status)
	assert.Empty(t, resp.Video.ArtifactPath)
	assert.Zero(t, resp.Video.TotalFrames)
}

func TestGetVideoNotFound(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/videos/missing.mp4")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "video not found", decode[api.ErrorResponse](t, rec).Error)
}

func TestGetVideoRejectsPathSegments(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/videos/..%2Fcam.mp4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteVideo(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodDelete, "/api/videos/cam.mp4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.RemoveResponse{Filename: "cam.mp4", Removed: true}, decode[api.RemoveResponse](t, rec))

	exists, err := f.coord.ExistsByFilename(context.Background(), "cam.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	again := f.do(t, http.MethodDelete, "/api/videos/cam.mp4")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, api.RemoveResponse{Filename: "cam.mp4", Removed: false}, decode[api.RemoveResponse](t, again))
}

func TestStatusRoute(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[api.DaemonStatus](t, rec)
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.WatchDir)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, http.MethodPost, "/api/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBearerTokenRequired(t *testing.T) {
	f := newFixture(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/videos").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/videos", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/videos", "Authorization", "Bearer secret").Code)
}
