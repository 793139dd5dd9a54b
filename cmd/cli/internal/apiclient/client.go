package apiclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zzn199216/hum2song-webui/cmd/cli/internal/clierr"
	"github.com/zzn199216/hum2song-webui/internal/codec"
	hscore "github.com/zzn199216/hum2song-webui/internal/score"
)

// Client talks to one hum2song server: a single resty.Client with base
// URL, timeout, and a fixed User-Agent.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	h := resty.New()
	h.SetBaseURL(strings.TrimRight(baseURL, "/"))
	h.SetTimeout(timeout)
	h.SetHeader("User-Agent", "hum2song-cli/0.1.0")
	return &Client{http: h}
}

// apiError turns a resty transport error or a non-2xx response into a
// clierr.CLIError, so every command's RunE can return it unwrapped.
func apiError(resp *resty.Response, err error) error {
	if err != nil {
		return clierr.Network("request failed", err)
	}
	if resp.IsError() {
		body := strings.TrimSpace(string(resp.Body()))
		return clierr.Network(fmt.Sprintf("server returned %d", resp.StatusCode()), fmt.Errorf("%s", body))
	}
	return nil
}

// Submit posts an audio file to POST /generate?output_format=....
func (c *Client) Submit(filePath, outputFormat string) (*SubmitResponse, error) {
	var out SubmitResponse
	resp, err := c.http.R().
		SetFile("file", filePath).
		SetQueryParam("output_format", outputFormat).
		SetResult(&out).
		Post("/generate")
	if aerr := apiError(resp, err); aerr != nil {
		return nil, aerr
	}
	return &out, nil
}

// GetTask fetches GET /tasks/{id}.
func (c *Client) GetTask(id string) (*TaskInfo, error) {
	var out TaskInfo
	resp, err := c.http.R().SetResult(&out).Get("/tasks/" + id)
	if aerr := apiError(resp, err); aerr != nil {
		return nil, aerr
	}
	return &out, nil
}

// DownloadArtifact fetches GET /tasks/{id}/download?file_type=... and
// returns the raw bytes plus the response content-type.
func (c *Client) DownloadArtifact(id, fileType string) ([]byte, string, error) {
	resp, err := c.http.R().SetQueryParam("file_type", fileType).Get("/tasks/" + id + "/download")
	if aerr := apiError(resp, err); aerr != nil {
		return nil, "", aerr
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

// GetScore fetches GET /tasks/{id}/score.
func (c *Client) GetScore(id string) (hscore.Score, error) {
	var out hscore.Score
	resp, err := c.http.R().SetResult(&out).Get("/tasks/" + id + "/score")
	if aerr := apiError(resp, err); aerr != nil {
		return hscore.Score{}, aerr
	}
	return out, nil
}

// PutScore sends PUT /tasks/{id}/score.
func (c *Client) PutScore(id string, sc hscore.Score) error {
	resp, err := c.http.R().SetBody(sc).SetResult(&ackResponse{}).Put("/tasks/" + id + "/score")
	return apiError(resp, err)
}

// Render triggers POST /tasks/{id}/render?output_format=....
func (c *Client) Render(id, outputFormat string) error {
	resp, err := c.http.R().
		SetQueryParam("output_format", outputFormat).
		SetResult(&ackResponse{}).
		Post("/tasks/" + id + "/render")
	return apiError(resp, err)
}

// ExportMIDI posts a flattened note list to POST /export/midi and returns
// the raw MIDI bytes.
func (c *Client) ExportMIDI(flat codec.Flattened) ([]byte, error) {
	resp, err := c.http.R().SetBody(flat).Post("/export/midi")
	if aerr := apiError(resp, err); aerr != nil {
		return nil, aerr
	}
	return resp.Body(), nil
}

// WaitForCompletion polls GET /tasks/{id} at interval until the job is
// finalized or deadline elapses, returning clierr.PollTimeout in the
// latter case.
func (c *Client) WaitForCompletion(id string, interval, timeout time.Duration) (*TaskInfo, error) {
	deadline := time.Now().Add(timeout)
	for {
		info, err := c.GetTask(id)
		if err != nil {
			return nil, err
		}
		if info.IsFinal() {
			return info, nil
		}
		if time.Now().After(deadline) {
			return info, clierr.PollTimeout(fmt.Sprintf("task %s still %s after %s", id, info.Status, timeout))
		}
		time.Sleep(interval)
	}
}
