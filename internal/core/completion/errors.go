package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited はレート制限を受けた場合のエラー
	ErrRateLimited = errors.New("rate limited")

	// ErrNilResponse はコラボレータがエラーなしで nil を返した場合のエラー
	ErrNilResponse = errors.New("completion collaborator returned nil response")

	// ErrInvalidRetryPolicy はリトライ設定が不正な場合のエラー
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")
)

// ErrorKind はコラボレータのエラー種別
type ErrorKind string

const (
	// KindRateLimited はリトライで回復できるレート制限エラー
	KindRateLimited ErrorKind = "rate_limited"
	// KindExternal は認証・不正リクエスト・ネットワークなどその他のエラー
	KindExternal ErrorKind = "external"
)

// APIError はコラボレータが返すエラーに種別を付与したもの
// メッセージは元のエラーのまま変えない
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error (status %d)", e.Kind, e.StatusCode)
	}
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is は種別が KindRateLimited の場合に ErrRateLimited と一致させる
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.Kind == KindRateLimited
}

// KindOf はエラーの種別を判定する
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}
	return KindExternal
}

// IsRateLimited はエラーがレート制限によるものかどうかを判定する
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}
