package api

import (
	"cdppage/internal/config"
	"cdppage/internal/logger"
	"cdppage/internal/service"
	"cdppage/pkg/domain"
)

// Service 服务接口，中继边界的调用契约
type Service interface {
	// StartSession 启动会话
	StartSession(cfg domain.SessionConfig) (domain.SessionID, error)

	// StopSession 停止会话
	StopSession(id domain.SessionID) error

	// Rebind 目标重附加后重建事件订阅
	Rebind(id domain.SessionID) error

	// EnableInterception 启用全量拦截
	EnableInterception(id domain.SessionID) error

	// DisableInterception 停用全量拦截
	DisableInterception(id domain.SessionID) error

	// SetCacheEnabled 设置并持久化缓存开关
	SetCacheEnabled(id domain.SessionID, enabled bool) error

	// Authenticate 设置认证挑战凭据
	Authenticate(id domain.SessionID, username, password string) error

	// FetchBody 按请求句柄抓取响应体
	FetchBody(id domain.SessionID, requestID string) ([]byte, error)

	// ResolveRoute 对挂起的路由下达裁决
	ResolveRoute(id domain.SessionID, routeID string, decision domain.RouteDecision) error

	// SubscribeEvents 订阅事件
	SubscribeEvents(id domain.SessionID) (<-chan domain.NetworkEvent, error)
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, cfg *config.Config) Service {
	return service.New(l, cfg)
}
