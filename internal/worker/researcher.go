package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Regwatch/internal/domain"
)

const defaultResearchTimeout = 10 * time.Minute

// ProgressFunc получает строки прогресса по мере выполнения.
type ProgressFunc func(line string)

// Researcher выполняет само исследование. Для планировщика это чёрный ящик.
type Researcher interface {
	Research(ctx context.Context, job *domain.Job, progress ProgressFunc) (domain.JobStats, error)
}

// HTTPResearcher вызывает внешний сервис исследований.
//
// Запрос: POST {BaseURL}/research
//
//	{"states": [...], "data_types": [...], "depth": "summary", "since": "..."}
//
// Ответ 2xx:
//
//	{"artifacts": 12, "programs": 3, "logs": ["..."]}
//
// Любой другой статус — ошибка с началом тела ответа.
type HTTPResearcher struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

type researchRequest struct {
	JobID     string     `json:"job_id"`
	States    []string   `json:"states"`
	DataTypes []string   `json:"data_types"`
	Depth     string     `json:"depth"`
	Since     *time.Time `json:"since,omitempty"`
}

type researchResponse struct {
	Artifacts int      `json:"artifacts"`
	Programs  int      `json:"programs"`
	Logs      []string `json:"logs"`
}

// Research выполняет запрос и возвращает статистику.
func (r *HTTPResearcher) Research(ctx context.Context, job *domain.Job, progress ProgressFunc) (domain.JobStats, error) {
	if r.BaseURL == "" {
		return domain.JobStats{}, fmt.Errorf("%w: research url is not configured", ErrResearchRequest)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultResearchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(researchRequest{
		JobID:     job.ID.String(),
		States:    job.States,
		DataTypes: domain.DataTypeStrings(job.DataTypes),
		Depth:     string(job.Depth),
		Since:     job.Since,
	})
	if err != nil {
		return domain.JobStats{}, fmt.Errorf("%w: marshal request: %v", ErrResearchRequest, err)
	}

	url := strings.TrimRight(r.BaseURL, "/") + "/research"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.JobStats{}, fmt.Errorf("%w: create request: %v", ErrResearchRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	progress(fmt.Sprintf("requesting research for %s (%s)", strings.Join(job.States, ","), job.Depth))

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.JobStats{}, fmt.Errorf("%w: %v", ErrResearchRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.JobStats{}, fmt.Errorf("%w: read response: %v", ErrResearchRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.JobStats{}, fmt.Errorf("%w: HTTP %d: %s", ErrResearchRequest, resp.StatusCode, truncate(string(respBody), 200))
	}

	var out researchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.JobStats{}, fmt.Errorf("%w: decode response: %v", ErrResearchRequest, err)
	}
	for _, line := range out.Logs {
		progress(line)
	}

	return domain.JobStats{Artifacts: out.Artifacts, Programs: out.Programs}, nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
