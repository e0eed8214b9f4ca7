package detector_test

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/detection"
	"vidsentry/internal/detector"
	"vidsentry/internal/services"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 3))
}

func TestHTTPClientDetect(t *testing.T) {
	fieldsCh := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fieldsCh <- map[string]string{
			"confidence": r.FormValue("confidence"),
			"iou":        r.FormValue("iou"),
			"model":      r.FormValue("model"),
		}
		file, _, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		img, err := jpeg.Decode(file)
		if assert.NoError(t, err) {
			assert.Equal(t, 4, img.Bounds().Dx())
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"bbox":[1,2,3,4],"confidence":0.8,"class_id":2,"class_name":"car"}]}`))
	}))
	defer server.Close()

	client := detector.NewHTTPClient(detector.Config{Endpoint: server.URL + "/", Model: "yolov8n.pt"})
	dets, err := client.Detect(context.Background(), testFrame(), 0.25, 0.45)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, detection.FrameDetection{BBox: detection.BoundingBox{1, 2, 3, 4}, Confidence: 0.8, ClassID: 2, ClassName: "car"}, dets[0])
	assert.Equal(t, map[string]string{"confidence": "0.25", "iou": "0.45", "model": "yolov8n.pt"}, <-fieldsCh)
	assert.Equal(t, server.URL, client.Endpoint())
}

func TestHTTPClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := detector.NewHTTPClient(detector.Config{Endpoint: server.URL}).Detect(context.Background(), testFrame(), 0.5, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestHTTPClientRejectsInvalidDetections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections":[{"bbox":[1,2,3,4],"confidence":-1,"class_id":0,"class_name":"person"}]}`))
	}))
	defer server.Close()

	_, err := detector.NewHTTPClient(detector.Config{Endpoint: server.URL}).Detect(context.Background(), testFrame(), 0.5, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
}

func TestHTTPClientRejectsClassNameWithSeparator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections":[{"bbox":[1,2,3,4],"confidence":0.9,"class_id":9,"class_name":"traffic,light"}]}`))
	}))
	defer server.Close()

	_, err := detector.NewHTTPClient(detector.Config{Endpoint: server.URL}).Detect(context.Background(), testFrame(), 0.5, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
}

func TestHTTPClientEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections":[]}`))
	}))
	defer server.Close()

	dets, err := detector.NewHTTPClient(detector.Config{Endpoint: server.URL}).Detect(context.Background(), testFrame(), 0.5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestHTTPClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	_, err := detector.NewHTTPClient(detector.Config{Endpoint: endpoint}).Detect(context.Background(), testFrame(), 0.5, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
}

func TestHealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || unhealthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := detector.NewHTTPClient(detector.Config{Endpoint: server.URL})
	require.NoError(t, client.HealthCheck(context.Background()))
	unhealthy.Store(true)
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestLimitedBoundsConcurrency(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	inner := detector.Func(func(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	})
	limited := detector.NewLimited(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limited.Detect(context.Background(), testFrame(), 0.5, 0.5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestLimitedHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	inner := detector.Func(func(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error) {
		close(started)
		<-release
		return nil, nil
	})
	limited := detector.NewLimited(inner, 1)

	go func() { _, _ = limited.Detect(context.Background(), testFrame(), 0.5, 0.5) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limited.Detect(ctx, testFrame(), 0.5, 0.5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
