package network

import (
	"context"
	"fmt"
	"sync"

	"cdppage/internal/logger"
	"cdppage/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
)

// Manager 单会话网络事件核心：负责事件订阅的绑定、请求账本的维护、
// 请求生命周期的重建、响应体抓取与全量拦截。
// 每个会话恰好持有一个 Manager 实例，互不共享可变状态。
type Manager struct {
	sessionID domain.SessionID
	client    *cdp.Client
	log       logger.Logger
	events    Events

	// 测试注入点，默认走真实的流订阅
	subscribe          func(ctx context.Context) (*streamSet, error)
	subscribeIntercept func(ctx context.Context) (*interceptStreams, error)

	mu     sync.Mutex
	ledger map[network.RequestID]*Request // 交换标识 → 在途请求，每个标识至多一条
	// 认证挑战去重集合，按拦截标识记账，交换终结时清除
	attemptedAuth map[fetch.RequestID]struct{}
	// 先于 requestWillBeSent 到达的拦截标识，配对后转存到请求对象上
	interceptionByExchange map[network.RequestID]fetch.RequestID
	creds                  *Credentials

	// 期望的缓存停用状态：跨重绑定保留，Bind 时自动重放
	cacheDisabled bool

	loopCancel context.CancelFunc
	streams    *streamSet

	interceptEnabled bool
	interceptCancel  context.CancelFunc

	disposed bool
}

// Config Manager 配置选项
type Config struct {
	SessionID domain.SessionID
	Client    *cdp.Client
	Events    Events
	Logger    logger.Logger
}

// New 创建网络事件核心
func New(cfg Config) *Manager {
	ev := cfg.Events
	if ev == nil {
		ev = NopEvents{}
	}
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	m := &Manager{
		sessionID:              cfg.SessionID,
		client:                 cfg.Client,
		log:                    l,
		events:                 ev,
		ledger:                 make(map[network.RequestID]*Request),
		attemptedAuth:          make(map[fetch.RequestID]struct{}),
		interceptionByExchange: make(map[network.RequestID]fetch.RequestID),
	}
	m.subscribe = m.openStreams
	m.subscribeIntercept = m.openInterceptStreams
	return m
}

// Initialize 下发一次性的 Network 启用指令，失败对会话是致命的，直接上抛
func (m *Manager) Initialize(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	if err := m.client.Network.Enable(ctx, nil); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	return nil
}

// streamSet 一次绑定产生的四条事件流，整体开启、整体关闭
type streamSet struct {
	request  network.RequestWillBeSentClient
	response network.ResponseReceivedClient
	finished network.LoadingFinishedClient
	failed   network.LoadingFailedClient
}

// Close 关闭全部事件流，幂等
func (s *streamSet) Close() {
	if s == nil {
		return
	}
	if s.request != nil {
		s.request.Close()
	}
	if s.response != nil {
		s.response.Close()
	}
	if s.finished != nil {
		s.finished.Close()
	}
	if s.failed != nil {
		s.failed.Close()
	}
}

func (m *Manager) openStreams(ctx context.Context) (*streamSet, error) {
	ss := &streamSet{}
	var err error
	if ss.request, err = m.client.Network.RequestWillBeSent(ctx); err != nil {
		return nil, err
	}
	if ss.response, err = m.client.Network.ResponseReceived(ctx); err != nil {
		ss.Close()
		return nil, err
	}
	if ss.finished, err = m.client.Network.LoadingFinished(ctx); err != nil {
		ss.Close()
		return nil, err
	}
	if ss.failed, err = m.client.Network.LoadingFailed(ctx); err != nil {
		ss.Close()
		return nil, err
	}
	// 四条流同步为接收顺序，保证单会话事件逐个按序处理
	if err = cdp.Sync(ss.request, ss.response, ss.finished, ss.failed); err != nil {
		ss.Close()
		return nil, err
	}
	return ss, nil
}

// Bind 绑定事件订阅：先释放上一组处理器（无活动处理器时安全），
// 再为四种事件各订阅一条流并启动消费循环。
// 目标崩溃重附加后可重复调用，不会泄漏旧订阅；
// 既有账本条目不迁移，按会话有界泄漏处理。
func (m *Manager) Bind(ctx context.Context) error {
	m.unbind()

	loopCtx, cancel := context.WithCancel(ctx)
	ss, err := m.subscribe(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe network events: %w", err)
	}

	// 重放持久化的缓存停用状态，无需调用方重新设置
	if err := m.applyCacheState(ctx); err != nil {
		m.log.Warn("重放缓存状态失败", "sessionID", string(m.sessionID), "error", err)
	}

	m.mu.Lock()
	m.loopCancel = cancel
	m.streams = ss
	m.mu.Unlock()

	go m.consume(loopCtx, ss)
	m.log.Info("绑定网络事件订阅", "sessionID", string(m.sessionID))
	return nil
}

// unbind 释放当前的订阅与消费循环，无活动订阅时为空操作
func (m *Manager) unbind() {
	m.mu.Lock()
	cancel := m.loopCancel
	ss := m.streams
	m.loopCancel = nil
	m.streams = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	ss.Close()
}

// SetCacheEnabled 持久化期望的缓存状态并立即下发对应指令。
// 状态保存在 Manager 上，跨目标重附加保留，由下一次 Bind 自动重放。
func (m *Manager) SetCacheEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	m.cacheDisabled = !enabled
	m.mu.Unlock()
	return m.applyCacheState(ctx)
}

func (m *Manager) applyCacheState(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	m.mu.Lock()
	disabled := m.cacheDisabled
	m.mu.Unlock()
	return m.client.Network.SetCacheDisabled(ctx, &network.SetCacheDisabledArgs{CacheDisabled: disabled})
}

// Dispose 释放全部订阅并停止消费，幂等
func (m *Manager) Dispose() {
	m.unbind()
	m.stopIntercept()
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	m.log.Info("释放网络事件核心", "sessionID", string(m.sessionID))
}

// consume 消费四条事件流直至 ctx 取消或流中断
func (m *Manager) consume(ctx context.Context, ss *streamSet) {
	defer ss.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ss.request.Ready():
			ev, err := ss.request.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onRequestWillBeSent(ev)
		case <-ss.response.Ready():
			ev, err := ss.response.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onResponseReceived(ev)
		case <-ss.finished.Ready():
			ev, err := ss.finished.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onLoadingFinished(ev)
		case <-ss.failed.Ready():
			ev, err := ss.failed.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onLoadingFailed(ev)
		}
	}
}

func (m *Manager) streamClosed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	m.log.Warn("网络事件流中断", "sessionID", string(m.sessionID), "error", err)
}
