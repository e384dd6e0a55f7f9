package openai_compat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type CheckResult struct {
	Valid      bool   `json:"valid"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Model      string `json:"model_tested,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// Check probes the endpoint with a one-token streaming request and reports
// time to first token. Latency is halved to approximate one-way time, same
// as the settings view has always displayed it.
func Check(ctx context.Context, client *http.Client, apiKey, baseURL, model string) CheckResult {
	if strings.TrimSpace(apiKey) == "" {
		return CheckResult{Valid: false, Error: "API key is not configured"}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	endpoint := checkEndpointURL(baseURL)
	payload, err := json.Marshal(map[string]any{
		"model":      model,
		"messages":   []map[string]string{{"role": "user", "content": "hi"}},
		"max_tokens": 1,
		"stream":     true,
	})
	if err != nil {
		return CheckResult{Valid: false, Error: fmt.Sprintf("build probe payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return CheckResult{Valid: false, Error: fmt.Sprintf("build probe request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return CheckResult{Valid: false, Error: "cannot reach the server, check the base URL or proxy"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return checkStatusError(resp.StatusCode, string(body), start)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if !strings.HasPrefix(strings.TrimSpace(scanner.Text()), "data:") {
			continue
		}
		latency := time.Since(start).Milliseconds() / 2
		status := "operational"
		if latency >= 5000 {
			status = "degraded"
		}
		return CheckResult{
			Valid:      true,
			LatencyMS:  latency,
			Status:     status,
			Model:      model,
			HTTPStatus: http.StatusOK,
		}
	}
	return CheckResult{Valid: false, Error: "no streamed data received"}
}

func checkEndpointURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if strings.Contains(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func checkStatusError(status int, body string, start time.Time) CheckResult {
	msgs := map[int]string{
		http.StatusUnauthorized:        "API key is invalid or expired",
		http.StatusNotFound:            "endpoint path not found, check whether the base URL includes /v1",
		http.StatusTooManyRequests:     "quota exhausted or rate limited",
		http.StatusInternalServerError: "provider server error",
		http.StatusServiceUnavailable:  "service unavailable, check the model name",
		http.StatusGatewayTimeout:      "request timed out",
	}
	msg, ok := msgs[status]
	if !ok {
		trimmed := body
		if len(trimmed) > 100 {
			trimmed = trimmed[:100]
		}
		msg = fmt.Sprintf("HTTP %d: %s", status, trimmed)
	}
	return CheckResult{
		Valid:      false,
		Error:      msg,
		LatencyMS:  time.Since(start).Milliseconds() / 2,
		HTTPStatus: status,
	}
}
