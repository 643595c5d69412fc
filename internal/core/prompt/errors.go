package prompt

import "errors"

var (
	// ErrInvalidArgument はフラグメントの構築時に不変条件が満たされない場合のエラー
	ErrInvalidArgument = errors.New("invalid argument")
)
