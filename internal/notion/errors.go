package notion

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable：网络/传输失败，或重试耗尽后仍为 429/5xx
	ErrUnavailable = errors.New("remote unavailable")
	// ErrRejected：API 层面拒绝（schema 错误、权限等），不重试
	ErrRejected = errors.New("remote request rejected")
)

// UnavailableError 包装网络/传输层失败。
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: remote unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// RejectedError 携带 4xx 响应的状态码与错误信息。
type RejectedError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected (%d %s): %s", e.Op, e.Status, e.Code, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// apiError 为 API 返回的错误体。
type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseAPIError(status int, body []byte) (apiError, bool) {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil || ae.Message == "" {
		return apiError{}, false
	}
	if ae.Status == 0 {
		ae.Status = status
	}
	return ae, true
}

// IsUnavailable 判断 err 是否为远端不可用。
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsRejected 判断 err 是否为请求被拒绝。
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }
