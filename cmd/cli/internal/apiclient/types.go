// Package apiclient is the resty-backed HTTP client the CLI commands
// share: one client covering the whole task, score, and export surface.
package apiclient

// SubmitResponse mirrors the 202 body of POST /generate.
type SubmitResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	PollURL   string `json:"poll_url"`
	CreatedAt string `json:"created_at"`
}

// Result mirrors jobstore.Result's wire shape.
type Result struct {
	FileKind     string `json:"file_type"`
	OutputFormat string `json:"output_format"`
	Filename     string `json:"filename"`
	DownloadURL  string `json:"download_url"`
}

// TaskError mirrors jobstore.Error's wire shape.
type TaskError struct {
	Message string  `json:"message"`
	TraceID *string `json:"trace_id"`
}

// TaskInfo mirrors the GET /tasks/{id} poll response.
type TaskInfo struct {
	TaskID    string     `json:"task_id"`
	Status    string     `json:"status"`
	Progress  float64    `json:"progress"`
	Stage     string     `json:"stage"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
	Result    *Result    `json:"result"`
	Error     *TaskError `json:"error"`
}

// IsFinal reports whether the task has left queued/running.
func (t TaskInfo) IsFinal() bool {
	return t.Status == "completed" || t.Status == "failed"
}

// ackResponse mirrors the small {"ok":true,...} bodies PUT /score,
// /render return.
type ackResponse struct {
	OK           bool   `json:"ok"`
	TaskID       string `json:"task_id"`
	OutputFormat string `json:"output_format,omitempty"`
}
