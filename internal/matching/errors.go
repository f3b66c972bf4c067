package matching

import "errors"

// 匹配核心对外暴露的哨兵错误，调用方用 errors.Is 判定后映射为404等响应。
var (
	ErrPersonNotFound   = errors.New("人员不存在")
	ErrPositionNotFound = errors.New("岗位不存在")
)
