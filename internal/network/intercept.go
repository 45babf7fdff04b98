package network

import (
	"context"
	"fmt"
	"sync"

	adapter "cdppage/internal/adapter/cdp"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
)

// Credentials 认证挑战应答凭据
type Credentials struct {
	Username string
	Password string
}

// Authenticate 设置认证挑战的应答凭据，传 nil 清除
func (m *Manager) Authenticate(creds *Credentials) {
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
}

// interceptStreams 拦截绑定产生的两条事件流
type interceptStreams struct {
	paused fetch.RequestPausedClient
	auth   fetch.AuthRequiredClient
}

func (s *interceptStreams) Close() {
	if s == nil {
		return
	}
	if s.paused != nil {
		s.paused.Close()
	}
	if s.auth != nil {
		s.auth.Close()
	}
}

func (m *Manager) openInterceptStreams(ctx context.Context) (*interceptStreams, error) {
	is := &interceptStreams{}
	var err error
	if is.paused, err = m.client.Fetch.RequestPaused(ctx); err != nil {
		return nil, err
	}
	if is.auth, err = m.client.Fetch.AuthRequired(ctx); err != nil {
		is.Close()
		return nil, err
	}
	return is, nil
}

// EnableInterception 安装覆盖全部请求的单条捕获模式，任一时刻至多存在一条。
// 每个命中的请求以 (Route, Request) 对上报并挂起，直到调用方裁决。
// 已启用时再次调用为空操作。
func (m *Manager) EnableInterception(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	m.mu.Lock()
	if m.interceptEnabled {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	p := "*"
	handleAuth := true
	args := &fetch.EnableArgs{
		Patterns:           []fetch.RequestPattern{{URLPattern: &p, RequestStage: fetch.RequestStageRequest}},
		HandleAuthRequests: &handleAuth,
	}
	if err := m.client.Fetch.Enable(ctx, args); err != nil {
		return fmt.Errorf("enable fetch domain: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	is, err := m.subscribeIntercept(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe intercept events: %w", err)
	}

	m.mu.Lock()
	m.interceptEnabled = true
	m.interceptCancel = cancel
	m.mu.Unlock()

	go m.consumeIntercept(loopCtx, is)
	m.log.Info("启用全量拦截", "sessionID", string(m.sessionID))
	return nil
}

// DisableInterception 移除捕获模式，此后所有请求不再被拦截。幂等。
func (m *Manager) DisableInterception(ctx context.Context) error {
	m.mu.Lock()
	enabled := m.interceptEnabled
	m.mu.Unlock()
	if !enabled {
		return nil
	}
	m.stopIntercept()
	if err := m.client.Fetch.Disable(ctx); err != nil {
		return fmt.Errorf("disable fetch domain: %w", err)
	}
	m.log.Info("停用全量拦截", "sessionID", string(m.sessionID))
	return nil
}

// stopIntercept 停止拦截消费循环并复位启用标志，不下发协议指令
func (m *Manager) stopIntercept() {
	m.mu.Lock()
	cancel := m.interceptCancel
	m.interceptCancel = nil
	m.interceptEnabled = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) consumeIntercept(ctx context.Context, is *interceptStreams) {
	defer is.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-is.paused.Ready():
			ev, err := is.paused.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onRequestPaused(ev)
		case <-is.auth.Ready():
			ev, err := is.auth.Recv()
			if err != nil {
				m.streamClosed(ctx, err)
				return
			}
			m.onAuthRequired(ev)
		}
	}
}

// onRequestPaused 将被暂停的请求上报为 Route。
// 暂停事件可能先于 requestWillBeSent 到达：能配对账本时就地打上拦截标识，
// 否则暂存待配对，并用事件自带的请求信息合成上报对象。
func (m *Manager) onRequestPaused(ev *fetch.RequestPausedReply) {
	m.mu.Lock()
	if !m.interceptEnabled {
		m.mu.Unlock()
		return
	}
	var req *Request
	if ev.NetworkID != nil {
		if live, ok := m.ledger[*ev.NetworkID]; ok {
			live.interceptionID = ev.RequestID
			req = live
		} else {
			m.interceptionByExchange[*ev.NetworkID] = ev.RequestID
		}
	}
	m.mu.Unlock()

	if req == nil {
		req = &Request{
			sessionID:    m.sessionID,
			url:          ev.Request.URL,
			method:       ev.Request.Method,
			resourceType: string(ev.ResourceType),
			postData:     adapter.PostData(ev.Request),
			headers:      adapter.ParseHeaders(ev.Request.Headers),
			frameID:      string(ev.FrameID),
		}
		if ev.NetworkID != nil {
			req.requestID = *ev.NetworkID
		}
		req.interceptionID = ev.RequestID
	}

	m.events.Route(&Route{m: m, fetchID: ev.RequestID, request: req})
}

// onAuthRequired 处理认证挑战：同一拦截标识的重复挑战直接取消，
// 首次挑战在配置了凭据时应答并登记记账，否则交回浏览器默认行为。
func (m *Manager) onAuthRequired(ev *fetch.AuthRequiredReply) {
	m.mu.Lock()
	_, attempted := m.attemptedAuth[ev.RequestID]
	creds := m.creds
	resp := fetch.AuthChallengeResponse{Response: "Default"}
	switch {
	case attempted:
		resp.Response = "CancelAuth"
	case creds != nil:
		resp.Response = "ProvideCredentials"
		resp.Username = &creds.Username
		resp.Password = &creds.Password
		m.attemptedAuth[ev.RequestID] = struct{}{}
	}
	m.mu.Unlock()

	args := &fetch.ContinueWithAuthArgs{RequestID: ev.RequestID, AuthChallengeResponse: resp}
	if err := m.client.Fetch.ContinueWithAuth(context.Background(), args); err != nil {
		m.log.Warn("应答认证挑战失败", "sessionID", string(m.sessionID), "error", err)
	}
}

// Route 被拦截挂起的请求，等待调用方 Continue / Fulfill / Abort 裁决。
// 核心不设超时，等待时长由调用方负责约束。裁决恰好生效一次。
type Route struct {
	m       *Manager
	fetchID fetch.RequestID
	request *Request

	mu       sync.Mutex
	resolved bool
}

// Request 被拦截的请求
func (r *Route) Request() *Request { return r.request }

func (r *Route) resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return fmt.Errorf("route already resolved")
	}
	r.resolved = true
	return nil
}

// Continue 放行请求
func (r *Route) Continue(ctx context.Context) error {
	if err := r.resolve(); err != nil {
		return err
	}
	return r.m.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: r.fetchID})
}

// Fulfill 以给定响应直接完成请求
type Fulfill struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

// Fulfill 以合成响应完成请求
func (r *Route) Fulfill(ctx context.Context, f Fulfill) error {
	if err := r.resolve(); err != nil {
		return err
	}
	status := f.Status
	if status == 0 {
		status = 200
	}
	args := &fetch.FulfillRequestArgs{RequestID: r.fetchID, ResponseCode: status}
	if len(f.Headers) > 0 {
		args.ResponseHeaders = adapter.ToHeaderEntries(f.Headers)
	}
	if len(f.Body) > 0 {
		args.Body = f.Body
	}
	if f.StatusText != "" {
		args.ResponsePhrase = &f.StatusText
	}
	return r.m.client.Fetch.FulfillRequest(ctx, args)
}

// Abort 以给定原因中止请求，原因为空时按通用失败处理
func (r *Route) Abort(ctx context.Context, reason string) error {
	if err := r.resolve(); err != nil {
		return err
	}
	return r.m.client.Fetch.FailRequest(ctx, &fetch.FailRequestArgs{
		RequestID:   r.fetchID,
		ErrorReason: abortReason(reason),
	})
}

func abortReason(reason string) network.ErrorReason {
	switch reason {
	case "aborted":
		return network.ErrorReasonAborted
	case "accessdenied":
		return network.ErrorReasonAccessDenied
	case "addressunreachable":
		return network.ErrorReasonAddressUnreachable
	case "blockedbyclient":
		return network.ErrorReasonBlockedByClient
	case "connectionfailed":
		return network.ErrorReasonConnectionFailed
	case "connectionrefused":
		return network.ErrorReasonConnectionRefused
	case "timedout":
		return network.ErrorReasonTimedOut
	default:
		return network.ErrorReasonFailed
	}
}
