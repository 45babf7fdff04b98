package network

import (
	"sync"
	"testing"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkEvent struct {
	kind     string
	req      *Request
	resp     *Response
	canceled bool
}

// recorder 记录下游通知的测试接收方
type recorder struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (r *recorder) add(ev sinkEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) RequestStarted(req *Request)     { r.add(sinkEvent{kind: "started", req: req}) }
func (r *recorder) ResponseReceived(resp *Response) { r.add(sinkEvent{kind: "response", resp: resp}) }
func (r *recorder) RequestFinished(req *Request)    { r.add(sinkEvent{kind: "finished", req: req}) }
func (r *recorder) RequestFailed(req *Request, canceled bool) {
	r.add(sinkEvent{kind: "failed", req: req, canceled: canceled})
}
func (r *recorder) Route(route *Route) { r.add(sinkEvent{kind: "route", req: route.Request()}) }

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.kind)
	}
	return out
}

func newTestManager() (*Manager, *recorder) {
	rec := &recorder{}
	m := New(Config{SessionID: "s1", Events: rec})
	return m, rec
}

func requestEvent(id, url string) *network.RequestWillBeSentReply {
	fid := page.FrameID("F1")
	return &network.RequestWillBeSentReply{
		RequestID: network.RequestID(id),
		LoaderID:  network.LoaderID("L1"),
		Request: network.Request{
			URL:     url,
			Method:  "GET",
			Headers: network.Headers([]byte(`{"Accept":"*/*"}`)),
		},
		Type:    network.ResourceTypeXHR,
		FrameID: &fid,
	}
}

func redirectEvent(id, url string, prevStatus int) *network.RequestWillBeSentReply {
	ev := requestEvent(id, url)
	ev.RedirectResponse = &network.Response{
		Status:     prevStatus,
		StatusText: "Found",
		Headers:    network.Headers([]byte(`{"Location":"` + url + `"}`)),
	}
	return ev
}

func TestRequestObservedCreatesSingleEntry(t *testing.T) {
	m, rec := newTestManager()

	m.onRequestWillBeSent(requestEvent("A1", "https://example.com/a"))

	require.Equal(t, []string{"started"}, rec.kinds())
	req := rec.events[0].req
	assert.Equal(t, "A1", req.ID())
	assert.Equal(t, "https://example.com/a", req.URL())
	assert.Empty(t, req.RedirectChain())
	assert.Equal(t, "F1", req.FrameID())

	require.Len(t, m.ledger, 1)
	assert.Same(t, req, m.ledger["A1"])
}

func TestRedirectChainThreeHops(t *testing.T) {
	m, rec := newTestManager()

	m.onRequestWillBeSent(requestEvent("R1", "https://example.com/a"))
	m.onRequestWillBeSent(redirectEvent("R1", "https://example.com/b", 301))
	m.onRequestWillBeSent(redirectEvent("R1", "https://example.com/c", 302))

	// 每一段重定向：前驱先 response+finished，后继才 started
	require.Equal(t, []string{
		"started",
		"response", "finished", "started",
		"response", "finished", "started",
	}, rec.kinds())

	final := rec.events[6].req
	require.Equal(t, "https://example.com/c", final.URL())
	chain := final.RedirectChain()
	require.Len(t, chain, 2)
	assert.Equal(t, "https://example.com/a", chain[0].URL())
	assert.Equal(t, "https://example.com/b", chain[1].URL())

	// 前驱各自以"响应体不可用"失败终结，且链不被后继改动
	for _, pred := range chain {
		resp := pred.Response()
		require.NotNil(t, resp)
		failed, reason := resp.Failed()
		assert.True(t, failed)
		assert.Equal(t, redirectBodyUnavailable, reason)
	}
	assert.Empty(t, chain[0].RedirectChain())
	assert.Len(t, chain[1].RedirectChain(), 1)

	// 账本只剩最终请求
	require.Len(t, m.ledger, 1)
	assert.Same(t, final, m.ledger["R1"])
}

func TestRedirectWithoutEntryStartsEmptyChain(t *testing.T) {
	m, rec := newTestManager()

	// 晚附加：内嵌前驱响应但无账本条目，载荷被丢弃
	m.onRequestWillBeSent(redirectEvent("X1", "https://example.com/late", 301))

	require.Equal(t, []string{"started"}, rec.kinds())
	assert.Empty(t, rec.events[0].req.RedirectChain())
}

func TestResponseWithoutEntryIsNoop(t *testing.T) {
	m, rec := newTestManager()

	m.onResponseReceived(&network.ResponseReceivedReply{
		RequestID: "UNKNOWN",
		Response:  network.Response{Status: 200},
	})
	m.onLoadingFinished(&network.LoadingFinishedReply{RequestID: "UNKNOWN"})
	m.onLoadingFailed(&network.LoadingFailedReply{RequestID: "UNKNOWN", ErrorText: "x"})

	assert.Empty(t, rec.kinds())
	assert.Empty(t, m.ledger)
}

func TestLoadingFinishedMarksResponse(t *testing.T) {
	m, rec := newTestManager()

	m.onRequestWillBeSent(requestEvent("A1", "https://example.com/a"))
	m.onResponseReceived(&network.ResponseReceivedReply{
		RequestID: "A1",
		Response: network.Response{
			Status:     200,
			StatusText: "OK",
			Headers:    network.Headers([]byte(`{"Content-Type":"text/html"}`)),
		},
	})
	m.onLoadingFinished(&network.LoadingFinishedReply{RequestID: "A1"})

	require.Equal(t, []string{"started", "response", "finished"}, rec.kinds())
	resp := rec.events[1].resp
	assert.True(t, resp.Finished())
	assert.Equal(t, 200, resp.Status())
	assert.Equal(t, "text/html", resp.Headers().Get("content-type"))
	assert.Empty(t, m.ledger)
}

func TestLoadingFailedCanceledFlag(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		canceled bool
	}{
		{"plain failure", "net::ERR_FAILED", false},
		{"cancelled substring", "net::ERR_ABORTED (cancelled)", true},
		{"cancelled embedded", "request was cancelled by caller", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, rec := newTestManager()
			m.onRequestWillBeSent(requestEvent("A1", "https://example.com/a"))
			m.onLoadingFailed(&network.LoadingFailedReply{RequestID: "A1", ErrorText: tc.text})

			require.Equal(t, []string{"started", "failed"}, rec.kinds())
			last := rec.events[1]
			assert.Equal(t, tc.canceled, last.canceled)
			assert.Equal(t, tc.text, last.req.Failure())
			assert.Empty(t, m.ledger)
		})
	}
}

func TestNavigationCorrelatorOnlyForDocuments(t *testing.T) {
	m, rec := newTestManager()

	doc := requestEvent("D1", "https://example.com/")
	doc.Type = network.ResourceTypeDocument
	m.onRequestWillBeSent(doc)
	m.onRequestWillBeSent(requestEvent("A1", "https://example.com/xhr"))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "s1::L1", rec.events[0].req.DocumentID())
	assert.Empty(t, rec.events[1].req.DocumentID())
}

func TestAuthMembershipClearedOnFinalize(t *testing.T) {
	m, rec := newTestManager()

	// 拦截事件先行：配对表里已有该交换的拦截标识
	m.interceptionByExchange["A1"] = "FETCH-1"
	m.attemptedAuth["FETCH-1"] = struct{}{}

	m.onRequestWillBeSent(requestEvent("A1", "https://example.com/a"))
	m.onLoadingFinished(&network.LoadingFinishedReply{RequestID: "A1"})

	require.Equal(t, []string{"started", "finished"}, rec.kinds())
	assert.Empty(t, m.attemptedAuth)
	assert.Empty(t, m.interceptionByExchange)
}

func TestResponseFinalizeHappensOnce(t *testing.T) {
	req := &Request{requestID: "A1"}
	resp := &Response{request: req, status: 200}

	resp.finalize(false, "boom")
	resp.finalize(true, "")

	failed, reason := resp.Failed()
	assert.True(t, failed)
	assert.Equal(t, "boom", reason)
	assert.False(t, resp.Finished())
}
