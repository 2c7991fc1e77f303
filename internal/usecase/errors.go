package usecase

import (
	"errors"
	"fmt"
)

// 業務エラーのコード。UIが失敗の種類で分岐できるようにする。
const (
	CodeLocationNotFound              = "location_not_found"
	CodeLocationDisabled              = "location_disabled"
	CodeOwnerInvalid                  = "owner_invalid"
	CodeSequentialPrerequisiteMissing = "sequential_prerequisite_missing"
	CodeConflictOtherOwner            = "conflict_other_owner"
	CodeRunNotFound                   = "run_not_found"
	CodeNotOwner                      = "not_owner"
	CodeSessionNotFound               = "session_not_found"
	CodeShopNotFound                  = "shop_not_found"
	CodeUserNotFound                  = "user_not_found"
	CodeValidationFailed              = "validation_failed"
	CodeUnauthorized                  = "unauthorized"
	CodeForbidden                     = "forbidden"
	CodeInternal                      = "internal_error"
)

// 業務エラー。ステータスとコードに加えて、
// 相手ownerの表示名や行番号などの詳細をDetailsで運ぶ。
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func NewHTTPErrorWithDetails(status int, code string, message string, details map[string]interface{}) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
