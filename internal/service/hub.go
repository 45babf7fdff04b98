package service

import (
	"context"
	"sync"
	"time"

	"cdppage/internal/ctxkeys"
	"cdppage/internal/logger"
	"cdppage/internal/network"
	"cdppage/internal/storage"
	"cdppage/pkg/domain"

	"github.com/google/uuid"
)

// hub 单会话事件集线器：实现核心的 Events 接口，把领域通知
// 扇出到订阅通道、登记待裁决的 Route、并将终结的交换写入流水。
// 核心侧的回调不丢不乱序；订阅通道在消费方积压时丢弃并告警。
type hub struct {
	sessionID domain.SessionID
	log       logger.Logger
	journal   *storage.Journal
	buffer    int

	mu       sync.Mutex
	subs     []chan domain.NetworkEvent
	routes   map[string]*network.Route
	requests map[string]*network.Request // 交换标识 → 请求，供中继句柄查找
	closed   bool
}

func newHub(sessionID domain.SessionID, buffer int, journal *storage.Journal, l logger.Logger) *hub {
	if buffer <= 0 {
		buffer = 256
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &hub{
		sessionID: sessionID,
		log:       l,
		journal:   journal,
		buffer:    buffer,
		routes:    make(map[string]*network.Route),
		requests:  make(map[string]*network.Request),
	}
}

func (h *hub) RequestStarted(req *network.Request) {
	h.mu.Lock()
	h.requests[req.ID()] = req
	h.mu.Unlock()
	h.publish(domain.NetworkEvent{Type: domain.EventRequestStarted, Request: req.Snapshot()})
}

func (h *hub) ResponseReceived(resp *network.Response) {
	h.publish(domain.NetworkEvent{
		Type:     domain.EventResponseReceived,
		Request:  resp.Request().Snapshot(),
		Response: resp.Snapshot(),
	})
}

func (h *hub) RequestFinished(req *network.Request) {
	h.record(req, false)
	ev := domain.NetworkEvent{Type: domain.EventRequestFinished, Request: req.Snapshot()}
	if resp := req.Response(); resp != nil {
		ev.Response = resp.Snapshot()
	}
	h.publish(ev)
}

func (h *hub) RequestFailed(req *network.Request, canceled bool) {
	h.record(req, canceled)
	ev := domain.NetworkEvent{
		Type:     domain.EventRequestFailed,
		Request:  req.Snapshot(),
		Failure:  req.Failure(),
		Canceled: canceled,
	}
	if resp := req.Response(); resp != nil {
		ev.Response = resp.Snapshot()
	}
	h.publish(ev)
}

func (h *hub) Route(route *network.Route) {
	id := uuid.NewString()
	h.mu.Lock()
	h.routes[id] = route
	h.mu.Unlock()
	h.publish(domain.NetworkEvent{
		Type:    domain.EventRoute,
		RouteID: id,
		Request: route.Request().Snapshot(),
	})
}

// takeRoute 取走一条待裁决 Route，取走即注销
func (h *hub) takeRoute(id string) (*network.Route, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	route, ok := h.routes[id]
	delete(h.routes, id)
	return route, ok
}

// lookupRequest 按交换标识查找请求句柄
func (h *hub) lookupRequest(requestID string) (*network.Request, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	req, ok := h.requests[requestID]
	return req, ok
}

func (h *hub) subscribe() <-chan domain.NetworkEvent {
	ch := make(chan domain.NetworkEvent, h.buffer)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
	h.routes = map[string]*network.Route{}
	h.requests = map[string]*network.Request{}
}

func (h *hub) publish(ev domain.NetworkEvent) {
	ev.Session = h.sessionID
	ev.Timestamp = time.Now().UnixMilli()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("订阅通道积压，丢弃事件", "sessionID", string(h.sessionID), "type", string(ev.Type))
		}
	}
}

func (h *hub) record(req *network.Request, canceled bool) {
	if h.journal == nil {
		return
	}
	ctx := context.WithValue(context.Background(), ctxkeys.SessionIDKey{}, string(h.sessionID))
	var resp *network.Response
	if resp = req.Response(); resp != nil {
		if err := h.journal.Record(ctx, h.sessionID, req.Snapshot(), resp.Snapshot(), canceled); err != nil {
			h.log.Warn("写入交换流水失败", "sessionID", string(h.sessionID), "error", err)
		}
		return
	}
	if err := h.journal.Record(ctx, h.sessionID, req.Snapshot(), nil, canceled); err != nil {
		h.log.Warn("写入交换流水失败", "sessionID", string(h.sessionID), "error", err)
	}
}
