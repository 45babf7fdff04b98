package session

import (
	"context"
	"fmt"

	"cdppage/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

// Session 绑定单个页面目标的 CDP 会话
type Session struct {
	ID     domain.SessionID
	Target domain.TargetID
	Client *cdp.Client

	conn   *rpcc.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Context 会话生命周期 context，会话关闭时取消
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close 关闭会话连接，幂等
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// dial 连接 DevTools 端点并附加目标，target 为空时取第一个可用目标
func dial(devtoolsURL string, target domain.TargetID) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	dt := devtool.New(devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if target == "" || string(targets[i].ID) == string(target) {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		cancel()
		return nil, fmt.Errorf("no target")
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial target: %w", err)
	}

	return &Session{
		Target: domain.TargetID(sel.ID),
		Client: cdp.NewClient(conn),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}
