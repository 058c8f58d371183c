package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Сигнальные ошибки для проверки через errors.Is.
var (
	// ErrLoginFailure возвращается Login, когда токен отклонён (401 на /users/@me).
	ErrLoginFailure = errors.New("login failure")
	// ErrForbidden соответствует ответу 403.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound соответствует ответу 404.
	ErrNotFound = errors.New("not found")
	// ErrServerError соответствует 5xx после исчерпания повторов.
	ErrServerError = errors.New("discord server error")
	// ErrGatewayNotFound возвращается при неудачном запросе адреса gateway.
	ErrGatewayNotFound = errors.New("the gateway to connect to discord was not found")
	// ErrSessionClosed возвращается, если сессия не создана или закрыта.
	ErrSessionClosed = errors.New("http session is closed")
)

// HTTPError представляет неуспешный ответ Discord API
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	// Code код ошибки Discord из поля "code" (0, если его нет)
	Code int
	// Message текст ошибки, дополненный развёрнутыми ошибками полей
	Message string
	// Body декодированное тело ответа: JSON-документ или текст
	Body    any
	Headers http.Header
}

// Error реализует интерфейс error
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%d %s (error code: %d)", e.StatusCode, e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is сопоставляет ошибку с сигнальными ошибками по статусу
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrServerError:
		return e.StatusCode >= 500
	}
	return false
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

// NewHTTPError создаёт HTTP ошибку из ответа и декодированного тела
func NewHTTPError(resp *http.Response, body any) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       body,
		Headers:    resp.Header,
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = resp.Request.URL.String()
	}

	switch v := body.(type) {
	case map[string]any:
		if code, ok := v["code"].(float64); ok {
			e.Code = int(code)
		}
		e.Message, _ = v["message"].(string)
		if fields, ok := v["errors"].(map[string]any); ok && len(fields) > 0 {
			e.Message += "\n" + formatFieldErrors(flattenFieldErrors(fields, ""))
		}
	case string:
		e.Message = v
	}
	return e
}

// flattenFieldErrors разворачивает вложенный объект "errors" в пары путь → сообщение
func flattenFieldErrors(fields map[string]any, prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range fields {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		nested, ok := v.(map[string]any)
		if !ok {
			out[key] = fmt.Sprint(v)
			continue
		}
		list, ok := nested["_errors"].([]any)
		if !ok {
			for nk, nv := range flattenFieldErrors(nested, key) {
				out[nk] = nv
			}
			continue
		}
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				s, _ := m["message"].(string)
				msgs = append(msgs, s)
			}
		}
		out[key] = strings.Join(msgs, " ")
	}
	return out
}

func formatFieldErrors(flat map[string]string) string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("In %s: %s", k, flat[k]))
	}
	return strings.Join(lines, "\n")
}

// ConfigurationError представляет ошибку конфигурации
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error реализует интерфейс error
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewConfigurationError создаёт новую ошибку конфигурации
func NewConfigurationError(field string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
