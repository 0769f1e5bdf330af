package dto

import "camviewer/internal/model"

// ViewerStatus is the JSON body of the viewer's status endpoint.
type ViewerStatus struct {
	Enabled            bool          `json:"enabled"`
	Mode               string        `json:"mode"`
	FPS                float64       `json:"fps"`
	Frames             uint64        `json:"frames"`
	Uploads            uint64        `json:"uploads"`
	Dropped            uint64        `json:"dropped"`
	TransformFailures  uint64        `json:"transformFailures"`
	Fallbacks          uint64        `json:"fallbacks"`
	ExternalFrames     uint64        `json:"externalFrames"`
	TelemetryConnected bool          `json:"telemetryConnected"`
	TelemetryDropped   uint64        `json:"telemetryDropped"`
	Session            string        `json:"session,omitempty"`
	Source             string        `json:"source"`
	Texture            TextureStatus `json:"texture"`
	RenderTicks        uint64        `json:"renderTicks"`
}

// TextureStatus describes the texture currently on screen.
type TextureStatus struct {
	Kind     string `json:"kind"`
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
	Failures uint64 `json:"failures"`
}

// RecentStats is the JSON body of the relay's history endpoint.
type RecentStats struct {
	Frames []model.FrameSample `json:"frames"`
	Stats  []model.StatsSample `json:"stats"`
}
