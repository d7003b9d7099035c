package model

import "errors"

var (
	// ErrInvalidArgument 表示调用参数不合法，HTTP 层映射为 400。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidFilterValue 表示 LLM 抽取出的元数据不在封闭集合内，只记录日志不向上返回。
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrCollaboratorFailure 包装外部依赖（embedding、向量库、LLM、重排序服务）的失败。
	ErrCollaboratorFailure = errors.New("collaborator failure")
	// ErrNilDependency 表示构造组件时缺少必需的依赖。
	ErrNilDependency = errors.New("nil dependency")
)
