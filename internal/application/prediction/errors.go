package prediction

import (
	"errors"
	"fmt"
)

// ErrTimeout 推荐请求超过整体超时
var ErrTimeout = errors.New("prediction timed out")

// ValidationError 请求参数不合法（调用方错误），Message 直接返回给客户端
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// EncodingError 查询文本编码失败
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return "encode query: " + e.Reason + ": " + e.Err.Error()
	}
	return "encode query: " + e.Reason
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ScoreDomainError 相似度不是有限实数
type ScoreDomainError struct {
	Score float64
}

func (e *ScoreDomainError) Error() string {
	return fmt.Sprintf("similarity score out of domain: %v", e.Score)
}
