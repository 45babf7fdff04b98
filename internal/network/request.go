package network

import (
	"cdppage/pkg/domain"
	"cdppage/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
)

// Request 单次交换的领域请求对象。
// 不可变字段在创建时填充；response / failureText / redirected / interceptionID
// 由账本持有者（Manager）在其锁内更新。
type Request struct {
	requestID    network.RequestID
	sessionID    domain.SessionID
	url          string
	method       string
	resourceType string
	postData     []byte
	headers      traffic.Header
	frameID      string
	documentID   string // 导航关联标识，仅顶层文档请求携带

	// 重定向链：前驱请求序列，最旧在前，根请求为空。
	// 只在创建时整体赋值，之后不再修改。
	redirectChain []*Request

	interceptionID fetch.RequestID // 拦截标识，与 Fetch 域配对后填充
	redirected     bool            // 已被重定向后继取代
	failureText    string
	response       *Response
}

// ID 交换标识
func (r *Request) ID() string { return string(r.requestID) }

// SessionID 所属会话标识
func (r *Request) SessionID() domain.SessionID { return r.sessionID }

// URL 请求地址
func (r *Request) URL() string { return r.url }

// Method HTTP 方法
func (r *Request) Method() string { return r.method }

// ResourceType 资源类型标签
func (r *Request) ResourceType() string { return r.resourceType }

// PostData 请求体原始数据，无则为 nil
func (r *Request) PostData() []byte { return r.postData }

// Headers 小写键的请求头
func (r *Request) Headers() traffic.Header { return r.headers }

// FrameID 所属帧标识
func (r *Request) FrameID() string { return r.frameID }

// DocumentID 导航关联标识，非顶层文档请求为空
func (r *Request) DocumentID() string { return r.documentID }

// RedirectChain 前驱请求序列，最旧在前
func (r *Request) RedirectChain() []*Request { return r.redirectChain }

// Response 当前响应对象，未观察到响应时为 nil
func (r *Request) Response() *Response { return r.response }

// Failure 失败文本，未失败时为空
func (r *Request) Failure() string { return r.failureText }

// Snapshot 生成跨中继边界的中立快照
func (r *Request) Snapshot() *traffic.Request {
	chain := make([]string, 0, len(r.redirectChain))
	for _, pred := range r.redirectChain {
		chain = append(chain, pred.url)
	}
	return &traffic.Request{
		ID:            string(r.requestID),
		URL:           r.url,
		Method:        r.method,
		Headers:       r.headers.Clone(),
		PostData:      r.postData,
		ResourceType:  r.resourceType,
		FrameID:       r.frameID,
		DocumentID:    r.documentID,
		RedirectChain: chain,
		Failure:       r.failureText,
	}
}

type responseState int

const (
	responsePending responseState = iota
	responseFinished
	responseFailed
)

// Response 单次交换的领域响应对象，反向持有其请求
type Response struct {
	request    *Request
	status     int
	statusText string
	headers    traffic.Header

	state      responseState
	failReason string
}

// Request 所属请求
func (r *Response) Request() *Request { return r.request }

// Status 状态码
func (r *Response) Status() int { return r.status }

// StatusText 状态文本
func (r *Response) StatusText() string { return r.statusText }

// Headers 小写键的响应头
func (r *Response) Headers() traffic.Header { return r.headers }

// RemoteAddress 远端地址占位，协议事件不携带该信息
func (r *Response) RemoteAddress() (ip string, port int) { return "", 0 }

// Finished 响应是否已成功终结
func (r *Response) Finished() bool { return r.state == responseFinished }

// Failed 响应是否已失败终结，失败时返回原因
func (r *Response) Failed() (bool, string) { return r.state == responseFailed, r.failReason }

// finalize 终结状态转移，pending → finished/failed 仅发生一次，之后的调用被忽略
func (r *Response) finalize(ok bool, reason string) {
	if r.state != responsePending {
		return
	}
	if ok {
		r.state = responseFinished
		return
	}
	r.state = responseFailed
	r.failReason = reason
}

// Snapshot 生成跨中继边界的中立快照
func (r *Response) Snapshot() *traffic.Response {
	state := "pending"
	switch r.state {
	case responseFinished:
		state = "finished"
	case responseFailed:
		state = "failed"
	}
	return &traffic.Response{
		RequestID:  string(r.request.requestID),
		Status:     r.status,
		StatusText: r.statusText,
		Headers:    r.headers.Clone(),
		State:      state,
		Failure:    r.failReason,
	}
}

// appendChain 复制前驱的链并追加前驱本身，绝不改动前驱自己的链
func appendChain(chain []*Request, pred *Request) []*Request {
	out := make([]*Request, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, pred)
}
