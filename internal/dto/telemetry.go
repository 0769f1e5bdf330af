package dto

// Message types exchanged over the telemetry connection.
const (
	MessageTypeFrame = "frame"
	MessageTypeStats = "stats"
	MessageTypeInfo  = "info"
)

// Envelope wraps every telemetry message: {"type":..., "session":..., "data":...}.
type Envelope struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Data    any    `json:"data"`
}

// FrameData is one point-in-time sample of a frame leaving the pipeline.
type FrameData struct {
	Timestamp      int64   `json:"timestamp"`
	Width          uint32  `json:"width"`
	Height         uint32  `json:"height"`
	FPS            float64 `json:"fps"`
	ProcessingMode int32   `json:"processingMode"`
	ProcessingTime int64   `json:"processingTime"`
}

// StatsData is the once-per-second summary derived from frame samples.
type StatsData struct {
	AverageFPS            float64 `json:"averageFPS"`
	MaxFPS                float64 `json:"maxFPS"`
	MinFPS                float64 `json:"minFPS"`
	AverageProcessingTime float64 `json:"averageProcessingTime"`
	TotalFrames           uint64  `json:"totalFrames"`
	Uptime                int64   `json:"uptime"`
}
