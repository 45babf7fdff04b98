package cdp

import (
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
)

func TestParseHeadersLowercasesKeys(t *testing.T) {
	h := ParseHeaders(network.Headers([]byte(`{"Content-Type":"text/html","X-Foo":"bar"}`)))

	assert.Equal(t, "text/html", h["content-type"])
	assert.Equal(t, "bar", h["x-foo"])
	_, hasMixed := h["Content-Type"]
	assert.False(t, hasMixed)
}

func TestParseHeadersLastDuplicateWins(t *testing.T) {
	// 小写化后冲突，文档顺序靠后的值胜出
	h := ParseHeaders(network.Headers([]byte(`{"Content-Type":"a","CONTENT-TYPE":"b"}`)))

	assert.Len(t, h, 1)
	assert.Equal(t, "b", h.Get("content-type"))
}

func TestParseHeadersEmpty(t *testing.T) {
	assert.Empty(t, ParseHeaders(nil))
	assert.Empty(t, ParseHeaders(network.Headers([]byte(`{}`))))
}

func TestHeaderFromEntries(t *testing.T) {
	h := HeaderFromEntries([]fetch.HeaderEntry{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "SET-COOKIE", Value: "b=2"},
	})

	assert.Len(t, h, 1)
	assert.Equal(t, "b=2", h.Get("set-cookie"))
}

func TestPostData(t *testing.T) {
	body := "a=1&b=2"
	assert.Equal(t, []byte(body), PostData(network.Request{PostData: &body}))
	assert.Nil(t, PostData(network.Request{}))

	empty := ""
	assert.Nil(t, PostData(network.Request{PostData: &empty}))
}
