package cdp

import (
	"strings"

	"cdppage/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/tidwall/gjson"
)

// ParseHeaders 按文档顺序解析 CDP 头部 JSON 为中立 Header。
// 键统一小写；小写后冲突时，文档中靠后的值覆盖靠前的值。
func ParseHeaders(raw network.Headers) traffic.Header {
	h := make(traffic.Header)
	if len(raw) == 0 {
		return h
	}
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		h[strings.ToLower(key.String())] = value.String()
		return true
	})
	return h
}

// HeaderFromEntries 将 Fetch 域的头部条目折叠为中立 Header，后者覆盖前者
func HeaderFromEntries(entries []fetch.HeaderEntry) traffic.Header {
	h := make(traffic.Header, len(entries))
	for _, e := range entries {
		h.Set(e.Name, e.Value)
	}
	return h
}

// ToHeaderEntries 将中立 Header 展开为 Fetch 域头部条目
func ToHeaderEntries(h map[string]string) []fetch.HeaderEntry {
	out := make([]fetch.HeaderEntry, 0, len(h))
	for k, v := range h {
		out = append(out, fetch.HeaderEntry{Name: k, Value: v})
	}
	return out
}

// PostData 提取请求体原始数据，无则返回 nil
func PostData(req network.Request) []byte {
	if req.PostData == nil || *req.PostData == "" {
		return nil
	}
	return []byte(*req.PostData)
}
