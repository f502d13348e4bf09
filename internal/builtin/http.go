package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashmetov/conveyor/internal/task"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 << 20
	maxErrorSnippet    = 200
)

// HTTPRequest — задача-обёртка над HTTP-вызовом. Kwargs: url
// (обязателен), method (по умолчанию GET), headers (map), body
// (сериализуется в JSON; строка уходит как есть), timeout_sec (число,
// доли секунды допустимы). Результат — map со status_code, headers и
// телом ответа: JSON разбирается, остальное возвращается строкой.
//
// Сетевые ошибки, таймауты и ответы 5xx считаются транзиентными и
// просят повтор; 4xx — ошибка задачи без повтора.
func HTTPRequest(ctx context.Context, _ []any, kwargs map[string]any) (any, error) {
	url := stringOr(kwargs, "url", "")
	if url == "" {
		return nil, errors.New("url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(kwargs))
	defer cancel()

	req, err := newRequest(ctx, url, kwargs)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, task.Retry("http request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, task.Retry("read response failed", err)
	}

	if resp.StatusCode >= 400 {
		cause := fmt.Errorf("HTTP %d: %s", resp.StatusCode, clip(string(payload), maxErrorSnippet))
		if resp.StatusCode >= 500 {
			return nil, task.Retry("server error", cause)
		}
		return nil, cause
	}

	return responseMap(resp, payload), nil
}

// newRequest собирает запрос: метод, тело и заголовки из kwargs.
func newRequest(ctx context.Context, url string, kwargs map[string]any) (*http.Request, error) {
	var body io.Reader
	if raw, ok := kwargs["body"]; ok && raw != nil {
		buf, err := encodeBody(raw)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, stringOr(kwargs, "method", http.MethodGet), url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if hdrs, ok := kwargs["headers"].(map[string]any); ok {
		for name, v := range hdrs {
			if s, ok := v.(string); ok {
				req.Header.Set(name, s)
			}
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// encodeBody превращает body-kwarg в байты: готовая строка уходит
// без повторной сериализации.
func encodeBody(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}

// responseMap собирает результат задачи из ответа.
func responseMap(resp *http.Response, payload []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for name, vals := range resp.Header {
		if len(vals) > 0 {
			headers[name] = vals[0]
		}
	}

	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		body = string(payload)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}
}

// stringOr читает строковый kwarg; пустое или отсутствующее
// значение заменяется на def.
func stringOr(kwargs map[string]any, key, def string) string {
	if s, ok := kwargs[key].(string); ok && s != "" {
		return s
	}
	return def
}

// callTimeout читает timeout_sec из kwargs.
func callTimeout(kwargs map[string]any) time.Duration {
	if n, ok := toFloat(kwargs["timeout_sec"]); ok && n > 0 {
		return time.Duration(n * float64(time.Second))
	}
	return defaultHTTPTimeout
}

// clip обрезает s для сообщений об ошибках.
func clip(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
