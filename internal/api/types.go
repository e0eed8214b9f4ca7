package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	VideoStatusCompleted = "completed"
	VideoStatusPending   = "pending"
)

// Video describes a claimed video and its summary in a transport-friendly format.
type Video struct {
	ID               int64          `json:"id"`
	Filename         string         `json:"filename"`
	Status           string         `json:"status"`
	ClassesDetected  []string       `json:"classesDetected"`
	MaxCountPerFrame map[string]int `json:"maxCountPerFrame,omitempty"`
	CreatedAt        string         `json:"createdAt,omitempty"`
	DetectedAt       string         `json:"detectedAt,omitempty"`
}

// VideoDetail extends Video with artifact information.
type VideoDetail struct {
	Video
	ArtifactPath      string `json:"artifactPath,omitempty"`
	TotalFrames       int    `json:"totalFrames"`
	FramesWithObjects int    `json:"framesWithObjects"`
}

// VideoListResponse wraps a collection of videos.
type VideoListResponse struct {
	Items []Video `json:"items"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video VideoDetail `json:"video"`
}

// RemoveResponse reports the result of a delete request.
type RemoveResponse struct {
	Filename string `json:"filename"`
	Removed  bool   `json:"removed"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running    bool     `json:"running"`
	Workers    int      `json:"workers"`
	Queued     int      `json:"queued"`
	Active     []string `json:"active"`
	Parked     int      `json:"parked"`
	Processed  int      `json:"processed"`
	Failed     int      `json:"failed"`
	Duplicates int      `json:"duplicates"`
	Removed    int      `json:"removed"`
	LastError  string   `json:"lastError,omitempty"`
	LastVideo  string   `json:"lastVideo,omitempty"`
	LastState  string   `json:"lastState,omitempty"`
	LastFinish string   `json:"lastFinish,omitempty"`
	StartedAt  string   `json:"startedAt,omitempty"`
}

// StoreStats counts videos by lifecycle state.
type StoreStats struct {
	Videos    int `json:"videos"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	DatabasePath   string             `json:"databasePath"`
	LockFilePath   string             `json:"lockFilePath"`
	WatchDir       string             `json:"watchDir"`
	ArtifactDir    string             `json:"artifactDir"`
	WatcherPending int                `json:"watcherPending"`
	Workflow       WorkflowStatus     `json:"workflow"`
	Store          StoreStats         `json:"store"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
