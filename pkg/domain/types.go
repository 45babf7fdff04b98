package domain

import "cdppage/pkg/traffic"

type SessionID string
type TargetID string

// SessionConfig 会话启动配置
type SessionConfig struct {
	DevToolsURL      string   `json:"devToolsURL"`
	Target           TargetID `json:"target"`
	SubscriberBuffer int      `json:"subscriberBuffer"`
	DisableCache     bool     `json:"disableCache"`
}

// EventType 网络事件类型
type EventType string

const (
	EventRequestStarted   EventType = "requestStarted"
	EventResponseReceived EventType = "responseReceived"
	EventRequestFinished  EventType = "requestFinished"
	EventRequestFailed    EventType = "requestFailed"
	EventRoute            EventType = "route"
)

// NetworkEvent 中继边界上的网络事件
type NetworkEvent struct {
	Type      EventType         `json:"type"`
	Session   SessionID         `json:"session"`
	Request   *traffic.Request  `json:"request,omitempty"`
	Response  *traffic.Response `json:"response,omitempty"`
	Failure   string            `json:"failure,omitempty"`
	Canceled  bool              `json:"canceled,omitempty"` // 失败文本含 cancelled，调用方视为预期内
	RouteID   string            `json:"routeId,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// RouteAction 被暂停请求的处置方式
type RouteAction string

const (
	RouteContinue RouteAction = "continue"
	RouteFulfill  RouteAction = "fulfill"
	RouteAbort    RouteAction = "abort"
)

// RouteDecision 调用方对被暂停请求的处置决定
type RouteDecision struct {
	Action      RouteAction       `json:"action"`
	Status      int               `json:"status,omitempty"`
	StatusText  string            `json:"statusText,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	ErrorReason string            `json:"errorReason,omitempty"`
}
