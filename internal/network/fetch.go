package network

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mafredri/cdp/protocol/network"
)

// FetchBody 按需抓取响应体：每次调用都发起一次新的协议往返，不做本地缓存。
// 以调用时刻捕获的交换标识与会话定位，不查询在途账本，
// 因此抓取期间发生的终结不会影响本次往返。
// 重定向前驱的响应体永不可用；会话已释放时返回错误。
func (m *Manager) FetchBody(ctx context.Context, req *Request) ([]byte, error) {
	client := m.client
	requestID := req.requestID

	m.mu.Lock()
	redirected := req.redirected
	disposed := m.disposed
	m.mu.Unlock()

	if redirected {
		return nil, errors.New(redirectBodyUnavailable)
	}
	if disposed || client == nil {
		return nil, errors.New("session closed")
	}

	reply, err := client.Network.GetResponseBody(ctx, &network.GetResponseBodyArgs{RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("get response body: %w", err)
	}
	if reply.Base64Encoded {
		body, err := base64.StdEncoding.DecodeString(reply.Body)
		if err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		return body, nil
	}
	return []byte(reply.Body), nil
}
