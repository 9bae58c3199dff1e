package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ErrSessionExpired сессию не удалось продлить, токены очищены
var ErrSessionExpired = errors.New("session expired")

// Error ответ API с кодом ошибки
type Error struct {
	Status int
	Title  string
	Errors []string // ошибки валидации
	Body   string
}

func (e *Error) Error() string {
	switch {
	case len(e.Errors) > 0:
		return strings.Join(e.Errors, "; ")
	case e.Title != "":
		return e.Title
	case e.Body != "":
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
	default:
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
}

// IsValidation сообщает, что сервер вернул список ошибок валидации
func (e *Error) IsValidation() bool {
	return len(e.Errors) > 0
}

// ValidationErrors возвращает ошибки валидации из err, nil если их нет
func ValidationErrors(err error) []string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.IsValidation() {
		return apiErr.Errors
	}
	return nil
}

// IsStatus проверяет код ответа API
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type errorPayload struct {
	Errors  json.RawMessage `json:"errors"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// parseError читает тело ответа с ошибкой
func parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{Status: resp.StatusCode}

	var payload errorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Body = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Errors = decodeErrors(payload.Errors)
	switch {
	case payload.Title != "":
		apiErr.Title = payload.Title
	case payload.Message != "":
		apiErr.Title = payload.Message
	case payload.Error != "":
		apiErr.Title = payload.Error
	}
	return apiErr
}

// decodeErrors принимает список строк или словарь поле -> список
func decodeErrors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var fields map[string][]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			list = append(list, fields[name]...)
		}
		return list
	}

	return nil
}
