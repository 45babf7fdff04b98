package ctxkeys

// SessionIDKey 会话标识的 context 键
type SessionIDKey struct{}
