package handlers

import (
	"sync"
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/pipeline"
	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
)

// ResultStore keeps the most recent pipeline delivery for the HTTP view.
// Callbacks only swap a snapshot under a short lock, so they never hold up
// the inference goroutine.
type ResultStore struct {
	mu      sync.Mutex
	frameID string
	latest  *ResultResponse
}

var _ pipeline.Listener = (*ResultStore)(nil)

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Begin attributes the next delivery to frameID.
func (s *ResultStore) Begin(frameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameID = frameID
}

func (s *ResultStore) OnDetect(detections []postprocess.Detection, elapsed time.Duration) {
	s.store(ResultResponse{
		Mode:          model.KindDetection.String(),
		Detections:    detections,
		ElapsedMillis: elapsed.Milliseconds(),
	})
}

func (s *ResultStore) OnClassify(category postprocess.Category, elapsed time.Duration) {
	s.store(ResultResponse{
		Mode:          model.KindClassification.String(),
		Category:      &category,
		ElapsedMillis: elapsed.Milliseconds(),
	})
}

func (s *ResultStore) OnEmpty() {
	s.store(ResultResponse{Empty: true})
}

func (s *ResultStore) store(r ResultResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.FrameID = s.frameID
	r.UpdatedAt = time.Now()
	s.latest = &r
}

// Latest returns a copy of the last delivery.
func (s *ResultStore) Latest() (ResultResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return ResultResponse{}, false
	}
	return *s.latest, true
}

// Reset forgets the last delivery, used when the model changes.
func (s *ResultStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
}
