package network

import (
	"fmt"
	"strings"

	adapter "cdppage/internal/adapter/cdp"

	"github.com/mafredri/cdp/protocol/network"
)

// redirectBodyUnavailable 重定向前驱响应体的固定失败文本，
// 在重定向发生的瞬间定格，之后任何时刻抓取响应体都返回它。
const redirectBodyUnavailable = "body unavailable for redirect responses"

// onRequestWillBeSent 处理"请求已观察"事件。
// 携带内嵌前驱响应载荷时视为一段重定向：先以合成失败终结并移除前驱，
// 再把前驱并入后继的重定向链，最后才登记并通报后继。
func (m *Manager) onRequestWillBeSent(ev *network.RequestWillBeSentReply) {
	var (
		chain     []*Request
		pred      *Request
		synthetic *Response
	)

	m.mu.Lock()
	if ev.RedirectResponse != nil {
		if prev, ok := m.ledger[ev.RequestID]; ok {
			pred = prev
			synthetic = m.supersedeLocked(prev, ev.RedirectResponse)
			chain = appendChain(prev.redirectChain, prev)
		}
		// 晚附加场景：没有账本条目时丢弃前驱响应载荷，本段以空链起步
	}

	req := &Request{
		requestID:     ev.RequestID,
		sessionID:     m.sessionID,
		url:           ev.Request.URL,
		method:        ev.Request.Method,
		resourceType:  string(ev.Type),
		postData:      adapter.PostData(ev.Request),
		headers:       adapter.ParseHeaders(ev.Request.Headers),
		redirectChain: chain,
	}
	if ev.FrameID != nil {
		req.frameID = string(*ev.FrameID)
	}
	// 导航关联标识只为顶层文档请求生成：会话标识与加载标识的组合
	if ev.Type == network.ResourceTypeDocument {
		req.documentID = fmt.Sprintf("%s::%s", m.sessionID, ev.LoaderID)
	}
	// 拦截事件先行到达时在此补上配对
	if fid, ok := m.interceptionByExchange[ev.RequestID]; ok {
		req.interceptionID = fid
		delete(m.interceptionByExchange, ev.RequestID)
	}
	m.ledger[ev.RequestID] = req
	m.mu.Unlock()

	if pred != nil {
		if synthetic != nil {
			m.events.ResponseReceived(synthetic)
		}
		m.events.RequestFinished(pred)
	}
	m.events.RequestStarted(req)
}

// supersedeLocked 以合成失败终结被重定向取代的前驱并移出账本。
// 前驱尚无响应时用内嵌载荷补建一个，返回该合成响应供事后通报；
// 已有响应时就地终结，返回 nil。调用方持有 m.mu。
func (m *Manager) supersedeLocked(prev *Request, payload *network.Response) *Response {
	var synthetic *Response
	if prev.response == nil {
		synthetic = &Response{
			request:    prev,
			status:     payload.Status,
			statusText: payload.StatusText,
			headers:    adapter.ParseHeaders(payload.Headers),
		}
		prev.response = synthetic
	}
	prev.response.finalize(false, redirectBodyUnavailable)
	prev.redirected = true
	m.clearAuthLocked(prev)
	delete(m.ledger, prev.requestID)
	return synthetic
}

// onResponseReceived 处理"响应已观察"事件。
// 无账本条目属于协议的善意缺口（如文件上传交换），静默忽略。
func (m *Manager) onResponseReceived(ev *network.ResponseReceivedReply) {
	m.mu.Lock()
	req, ok := m.ledger[ev.RequestID]
	if !ok {
		m.mu.Unlock()
		return
	}
	resp := &Response{
		request:    req,
		status:     ev.Response.Status,
		statusText: ev.Response.StatusText,
		headers:    adapter.ParseHeaders(ev.Response.Headers),
	}
	req.response = resp
	m.mu.Unlock()

	m.events.ResponseReceived(resp)
}

// onLoadingFinished 处理"加载完成"事件：终结响应、移除账本条目与认证记账
func (m *Manager) onLoadingFinished(ev *network.LoadingFinishedReply) {
	m.mu.Lock()
	req, ok := m.ledger[ev.RequestID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if req.response != nil {
		req.response.finalize(true, "")
	}
	m.clearAuthLocked(req)
	delete(m.ledger, ev.RequestID)
	m.mu.Unlock()

	m.events.RequestFinished(req)
}

// onLoadingFailed 处理"加载失败"事件。错误文本原样保留；
// 是否含 cancelled 子串单独成标志，调用方据此视为预期内失败。
func (m *Manager) onLoadingFailed(ev *network.LoadingFailedReply) {
	m.mu.Lock()
	req, ok := m.ledger[ev.RequestID]
	if !ok {
		m.mu.Unlock()
		return
	}
	req.failureText = ev.ErrorText
	if req.response != nil {
		req.response.finalize(false, ev.ErrorText)
	}
	m.clearAuthLocked(req)
	delete(m.ledger, ev.RequestID)
	m.mu.Unlock()

	m.events.RequestFailed(req, strings.Contains(ev.ErrorText, "cancelled"))
}

// clearAuthLocked 清除该交换的认证挑战记账，调用方持有 m.mu
func (m *Manager) clearAuthLocked(req *Request) {
	if req.interceptionID != "" {
		delete(m.attemptedAuth, req.interceptionID)
	}
	delete(m.interceptionByExchange, req.requestID)
}
