package service

import (
	"context"
	"fmt"
	"sync"

	"cdppage/internal/config"
	"cdppage/internal/ctxkeys"
	"cdppage/internal/logger"
	"cdppage/internal/network"
	"cdppage/internal/session"
	"cdppage/internal/storage"
	"cdppage/pkg/domain"
)

// Service 中继边界实现：对外暴露会话启停、缓存开关、拦截开关、
// 响应体抓取、路由裁决与事件订阅
type Service struct {
	log      logger.Logger
	cfg      *config.Config
	sessions *session.Manager
	journal  *storage.Journal

	mu   sync.RWMutex
	nets map[domain.SessionID]*network.Manager
	hubs map[domain.SessionID]*hub
}

// New 创建服务实例；流水库打开失败时降级为无流水运行
func New(l logger.Logger, cfg *config.Config) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	journal, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		l.Warn("打开交换流水库失败，降级为无流水运行", "error", err)
		journal = nil
	}
	return &Service{
		log:      l,
		cfg:      cfg,
		sessions: session.NewManager(l),
		journal:  journal,
		nets:     make(map[domain.SessionID]*network.Manager),
		hubs:     make(map[domain.SessionID]*hub),
	}
}

// StartSession 连接目标、启用协议域并绑定事件订阅。
// 初始化失败对会话是致命的，连接被关闭并上抛错误。
func (s *Service) StartSession(cfg domain.SessionConfig) (domain.SessionID, error) {
	devtoolsURL := cfg.DevToolsURL
	if devtoolsURL == "" {
		devtoolsURL = s.cfg.DevTools.URL
	}
	sess, err := s.sessions.Create(devtoolsURL, cfg.Target)
	if err != nil {
		return "", err
	}

	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = s.cfg.Events.SubscriberBuffer
	}
	h := newHub(sess.ID, buffer, s.journal, s.log)
	net := network.New(network.Config{
		SessionID: sess.ID,
		Client:    sess.Client,
		Events:    h,
		Logger:    s.log,
	})

	if err := net.Initialize(sess.Context()); err != nil {
		s.sessions.Delete(sess.ID)
		return "", fmt.Errorf("initialize session: %w", err)
	}
	if cfg.DisableCache {
		if err := net.SetCacheEnabled(sess.Context(), false); err != nil {
			s.log.Warn("设置缓存状态失败", "sessionID", string(sess.ID), "error", err)
		}
	}
	if err := net.Bind(sess.Context()); err != nil {
		s.sessions.Delete(sess.ID)
		return "", err
	}

	s.mu.Lock()
	s.nets[sess.ID] = net
	s.hubs[sess.ID] = h
	s.mu.Unlock()
	return sess.ID, nil
}

// StopSession 释放核心、清除会话流水并关闭连接
func (s *Service) StopSession(id domain.SessionID) error {
	s.mu.Lock()
	net := s.nets[id]
	h := s.hubs[id]
	delete(s.nets, id)
	delete(s.hubs, id)
	s.mu.Unlock()

	if net == nil {
		return fmt.Errorf("no session")
	}
	net.Dispose()
	h.close()
	if s.journal != nil {
		if err := s.journal.DropSession(contextWithSession(id), id); err != nil {
			s.log.Warn("清除会话流水失败", "sessionID", string(id), "error", err)
		}
	}
	s.sessions.Delete(id)
	return nil
}

// Rebind 目标崩溃重附加后重建事件订阅，旧订阅随绑定释放
func (s *Service) Rebind(id domain.SessionID) error {
	sess, net, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	return net.Bind(sess.Context())
}

// EnableInterception 启用全量拦截
func (s *Service) EnableInterception(id domain.SessionID) error {
	sess, net, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	return net.EnableInterception(sess.Context())
}

// DisableInterception 停用全量拦截
func (s *Service) DisableInterception(id domain.SessionID) error {
	sess, net, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	return net.DisableInterception(sess.Context())
}

// SetCacheEnabled 设置并持久化缓存开关
func (s *Service) SetCacheEnabled(id domain.SessionID, enabled bool) error {
	sess, net, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	return net.SetCacheEnabled(sess.Context(), enabled)
}

// Authenticate 设置认证挑战凭据，用户名为空时清除
func (s *Service) Authenticate(id domain.SessionID, username, password string) error {
	_, net, _, err := s.lookup(id)
	if err != nil {
		return err
	}
	if username == "" {
		net.Authenticate(nil)
		return nil
	}
	net.Authenticate(&network.Credentials{Username: username, Password: password})
	return nil
}

// FetchBody 按请求句柄抓取响应体
func (s *Service) FetchBody(id domain.SessionID, requestID string) ([]byte, error) {
	sess, net, h, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	req, ok := h.lookupRequest(requestID)
	if !ok {
		return nil, fmt.Errorf("no request %s", requestID)
	}
	return net.FetchBody(sess.Context(), req)
}

// ResolveRoute 对一条挂起的路由下达裁决
func (s *Service) ResolveRoute(id domain.SessionID, routeID string, decision domain.RouteDecision) error {
	sess, _, h, err := s.lookup(id)
	if err != nil {
		return err
	}
	route, ok := h.takeRoute(routeID)
	if !ok {
		return fmt.Errorf("no route %s", routeID)
	}
	switch decision.Action {
	case domain.RouteContinue:
		return route.Continue(sess.Context())
	case domain.RouteFulfill:
		return route.Fulfill(sess.Context(), network.Fulfill{
			Status:     decision.Status,
			StatusText: decision.StatusText,
			Headers:    decision.Headers,
			Body:       decision.Body,
		})
	case domain.RouteAbort:
		return route.Abort(sess.Context(), decision.ErrorReason)
	default:
		return fmt.Errorf("unknown route action %q", decision.Action)
	}
}

// SubscribeEvents 订阅会话的网络事件
func (s *Service) SubscribeEvents(id domain.SessionID) (<-chan domain.NetworkEvent, error) {
	_, _, h, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return h.subscribe(), nil
}

// Journal 返回会话流水，未启用流水时为 nil
func (s *Service) Journal() *storage.Journal {
	return s.journal
}

func (s *Service) lookup(id domain.SessionID) (*session.Session, *network.Manager, *hub, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, nil, nil, fmt.Errorf("no session")
	}
	s.mu.RLock()
	net := s.nets[id]
	h := s.hubs[id]
	s.mu.RUnlock()
	if net == nil || h == nil {
		return nil, nil, nil, fmt.Errorf("no session")
	}
	return sess, net, h, nil
}

func contextWithSession(id domain.SessionID) context.Context {
	return context.WithValue(context.Background(), ctxkeys.SessionIDKey{}, string(id))
}
