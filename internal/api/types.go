package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ShotView describes a shot in a transport-friendly format.
type ShotView struct {
	ID              string   `json:"id"`
	Order           int      `json:"order"`
	Status          string   `json:"status"`
	Prompt          string   `json:"prompt,omitempty"`
	DurationSeconds float64  `json:"durationSeconds,omitempty"`
	GeneratedImages []string `json:"generatedImages"`
	EnhancedImages  []string `json:"enhancedImages"`
	VideoFile       *string  `json:"videoFile"`
}

// RenderJobView describes a render job in a transport-friendly format.
type RenderJobView struct {
	ID           string `json:"id"`
	Quality      string `json:"quality"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	OutputFile   string `json:"outputFile,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// ProjectSummary is the list form of a project.
type ProjectSummary struct {
	ID         string `json:"id"`
	Stage      string `json:"stage,omitempty"`
	Shots      int    `json:"shots"`
	RenderJobs int    `json:"renderJobs"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// ProjectDetail is the full transport form of a project document.
type ProjectDetail struct {
	ID         string          `json:"id"`
	Stage      string          `json:"stage,omitempty"`
	Shots      []ShotView      `json:"shots"`
	RenderJobs []RenderJobView `json:"renderJobs"`
	CreatedAt  string          `json:"createdAt,omitempty"`
	UpdatedAt  string          `json:"updatedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	LibraryDir   string `json:"libraryDir"`
	LockFilePath string `json:"lockFilePath"`
	Projects     int    `json:"projects"`
	LiveTasks    int    `json:"liveTasks"`
}

// ProjectListResponse wraps a collection of project summaries.
type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

// RenderStartResponse reports the id of a newly queued render job.
type RenderStartResponse struct {
	JobID string `json:"jobId"`
}

// RenderJobResponse wraps a single render job payload.
type RenderJobResponse struct {
	Job RenderJobView `json:"job"`
}

// CancelResponse reports how many in-flight tasks a cancel request revoked.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// RecoveryResponse mirrors the reference recovery report.
type RecoveryResponse struct {
	Projects        int `json:"projects"`
	Shots           int `json:"shots"`
	ReferencesFound int `json:"referencesFound"`
	Localized       int `json:"localized"`
	Failed          int `json:"failed"`
}
