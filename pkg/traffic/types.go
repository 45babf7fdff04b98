package traffic

import "strings"

// Header 封装通用的头部操作，键一律小写
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 复制 Header，nil 安全
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Request 中立的请求快照，跨中继边界传递
type Request struct {
	ID            string   `json:"id"`            // 交换标识
	URL           string   `json:"url"`           // 完整URL
	Method        string   `json:"method"`        // HTTP方法
	Headers       Header   `json:"headers"`       // 请求头
	PostData      []byte   `json:"postData,omitempty"`
	ResourceType  string   `json:"resourceType"`  // 资源类型 (如 Document, XHR)
	FrameID       string   `json:"frameId,omitempty"`
	DocumentID    string   `json:"documentId,omitempty"`    // 导航关联标识，仅顶层文档请求携带
	RedirectChain []string `json:"redirectChain,omitempty"` // 前驱请求URL，最旧在前
	Failure       string   `json:"failure,omitempty"`
}

// Response 中立的响应快照
type Response struct {
	RequestID  string `json:"requestId"`
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Headers    Header `json:"headers"`
	RemoteIP   string `json:"remoteIP"`
	RemotePort int    `json:"remotePort"`
	State      string `json:"state"` // pending / finished / failed
	Failure    string `json:"failure,omitempty"`
}
