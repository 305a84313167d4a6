package registry

import "github.com/Etherlyweiner/bedrock/xerrors"

// 错误定义
var (
	// ErrRegistrationNotFound 实例不存在
	ErrRegistrationNotFound = xerrors.New("registry: registration not found")

	// ErrInvalidInstance 实例参数非法
	ErrInvalidInstance = xerrors.New("registry: invalid instance")

	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = xerrors.New("registry: registry is closed")

	// ErrStoreConflict 存储层配置冲突（同时指定多个后端）
	ErrStoreConflict = xerrors.New("registry: conflicting store backends")
)
