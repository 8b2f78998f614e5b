package catalog

import (
	"errors"
	"fmt"
)

// ErrNotReady 目录快照尚未发布
var ErrNotReady = errors.New("catalog is not ready")

// LoadError 目录加载失败（空描述、编码器输出数量或维度不匹配、来源读取失败）
type LoadError struct {
	// Index 出错记录的下标，-1 表示与具体记录无关
	Index  int
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "catalog load: " + e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("catalog load: entry %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(index int, reason string, err error) *LoadError {
	return &LoadError{Index: index, Reason: reason, Err: err}
}
