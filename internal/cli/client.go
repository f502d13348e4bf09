package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// requestTimeout ограничивает вызов API целиком.
const requestTimeout = 30 * time.Second

// SubmitTaskRequest — постановка задачи.
type SubmitTaskRequest struct {
	Task   string         `json:"task"`
	ID     string         `json:"id,omitempty"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
	Queue  string         `json:"queue,omitempty"`
}

// SubmitTaskResponse — подтверждение постановки задачи.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
	Queue  string `json:"queue"`
}

// TaskResultResponse — результат задачи.
// Повторяет DTO воркера: CLI не импортирует internal/api.
type TaskResultResponse struct {
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	DateDone  string          `json:"date_done"`
}

// Client ходит в HTTP API воркера.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient создаёт клиент API по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// SubmitTask ставит задачу в очередь.
func (c *Client) SubmitTask(req SubmitTaskRequest) (*SubmitTaskResponse, error) {
	var out SubmitTaskResponse
	if err := c.call(http.MethodPost, "/api/v1/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult возвращает результат задачи по ID.
func (c *Client) GetResult(taskID string) (*TaskResultResponse, error) {
	var out TaskResultResponse
	if err := c.call(http.MethodGet, "/api/v1/tasks/"+taskID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call выполняет запрос и раскрывает конверт {"data": ...} в out.
// nil in — запрос без тела, nil out — ответ не разбирается.
func (c *Client) call(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// apiError переводит конверт {"error": ...} в ошибку с кодом API.
// Если тело не разобралось, в ошибке остаётся хотя бы HTTP-статус.
func apiError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
}
