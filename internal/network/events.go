package network

// Events 下游通知接收方（导航子系统与中继层实现此接口）。
// 单个会话内的回调由同一个消费协程按因果顺序触发：
// 每个交换先 RequestStarted 恰好一次，之后 ResponseReceived 至多一次，
// 最后 RequestFinished / RequestFailed 恰好一次。
// Route 回调来自拦截协程，与上述顺序无关。
type Events interface {
	RequestStarted(req *Request)
	ResponseReceived(resp *Response)
	RequestFinished(req *Request)
	RequestFailed(req *Request, canceled bool)
	Route(route *Route)
}

// NopEvents 丢弃全部通知的空实现
type NopEvents struct{}

func (NopEvents) RequestStarted(*Request)      {}
func (NopEvents) ResponseReceived(*Response)   {}
func (NopEvents) RequestFinished(*Request)     {}
func (NopEvents) RequestFailed(*Request, bool) {}
func (NopEvents) Route(*Route)                 {}
