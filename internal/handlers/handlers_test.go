package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	output []float32
}

func (s *fakeSession) Run([]float32) ([]float32, error) {
	out := make([]float32, len(s.output))
	copy(out, s.output)
	return out, nil
}

func (s *fakeSession) Destroy() error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *pipeline.Coordinator, *pipeline.Worker) {
	t.Helper()

	log := logrus.New()
	results := NewResultStore()
	open := func(kind model.Kind) (pipeline.Executor, error) {
		if kind == model.KindClassification {
			shape := model.TensorShape{InputWidth: 4, InputHeight: 4, OutputCategories: 3}
			backend := model.NewBackend(kind, shape, &fakeSession{output: []float32{0.1, 0.9, 0.3}})
			return pipeline.NewClassifier(backend, []string{"paper", "glass", "metal"}, results, log), nil
		}
		shape := model.TensorShape{InputWidth: 4, InputHeight: 4, ChannelsFirst: true, OutputChannels: 6, OutputElements: 1}
		backend := model.NewBackend(kind, shape, &fakeSession{output: []float32{0.5, 0.5, 0.2, 0.2, 0.1, 0.8}})
		return pipeline.NewDetector(backend, []string{"paper", "glass"}, results, pipeline.DefaultConfig(), log), nil
	}

	coordinator := pipeline.NewCoordinator(open, log)
	require.NoError(t, coordinator.Switch(model.KindClassification))

	worker := pipeline.NewWorker()
	handler := NewHandler(coordinator, worker, results, log)

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx, handler.ProcessFrame)

	mux := http.NewServeMux()
	handler.Register(mux, nil)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		require.NoError(t, coordinator.Close())
	})
	return srv, coordinator, worker
}

func pngBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "frame.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func submitFrame(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	body, contentType := pngBody(t)
	resp, err := http.Post(srv.URL+"/frame", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var fr FrameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fr))
	require.NotEmpty(t, fr.FrameID)
	return fr.FrameID
}

func waitForResult(t *testing.T, srv *httptest.Server, frameID string) ResultResponse {
	t.Helper()

	var result ResultResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/result")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		result = ResultResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return false
		}
		return result.FrameID == frameID
	}, 2*time.Second, 5*time.Millisecond)
	return result
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "classify", body["mode"])
	require.Equal(t, true, body["loaded"])
}

func TestResultBeforeAnyFrame(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/result")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitFrameClassifies(t *testing.T) {
	srv, _, worker := newTestServer(t)

	frameID := submitFrame(t, srv)
	result := waitForResult(t, srv, frameID)

	require.Equal(t, "classify", result.Mode)
	require.NotNil(t, result.Category)
	require.Equal(t, "glass", result.Category.Label)
	require.InDelta(t, 0.9, result.Category.Score, 1e-6)
	require.False(t, result.Empty)
	require.EqualValues(t, 1, worker.Stats().Published)
}

func TestSwitchModeThenDetect(t *testing.T) {
	srv, coordinator, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/mode", "application/json", strings.NewReader(`{"mode":"detect"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	kind, ok := coordinator.Current()
	require.True(t, ok)
	require.Equal(t, model.KindDetection, kind)

	frameID := submitFrame(t, srv)
	result := waitForResult(t, srv, frameID)

	require.Equal(t, "detect", result.Mode)
	require.Len(t, result.Detections, 1)
	require.Equal(t, "glass", result.Detections[0].Top().Label)
}

func TestModeRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, body := range []string{`{"mode":"segment"}`, `not json`} {
		resp, err := http.Post(srv.URL+"/mode", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSubmitFrameRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/frame")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "frame.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err = http.Post(srv.URL+"/frame", mw.FormDataContentType(), body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResultStore(t *testing.T) {
	s := NewResultStore()
	_, ok := s.Latest()
	require.False(t, ok)

	s.Begin("frame-1")
	s.OnEmpty()
	r, ok := s.Latest()
	require.True(t, ok)
	require.True(t, r.Empty)
	require.Equal(t, "frame-1", r.FrameID)

	s.Reset()
	_, ok = s.Latest()
	require.False(t, ok)
}
