package handlers

import (
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
)

type FrameResponse struct {
	FrameID string `json:"frame_id"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type ModeResponse struct {
	Mode   string `json:"mode"`
	Loaded bool   `json:"loaded"`
}

// ResultResponse is the latest delivery from the pipeline.
type ResultResponse struct {
	Mode          string                  `json:"mode"`
	FrameID       string                  `json:"frame_id,omitempty"`
	Detections    []postprocess.Detection `json:"detections,omitempty"`
	Category      *postprocess.Category   `json:"category,omitempty"`
	ElapsedMillis int64                   `json:"elapsed_ms"`
	Empty         bool                    `json:"empty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}
