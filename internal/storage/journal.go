package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cdppage/internal/logger"
	"cdppage/pkg/domain"
	"cdppage/pkg/traffic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Exchange 单次网络交换的落库记录。
// 只作为当前会话的工作集存在，会话停止时整体删除。
type Exchange struct {
	ID              uint   `gorm:"primaryKey"`
	SessionID       string `gorm:"index"`
	RequestID       string
	URL             string
	Method          string
	ResourceType    string
	DocumentID      string
	Status          int
	StatusText      string
	RequestHeaders  string // JSON
	ResponseHeaders string // JSON
	Failure         string
	Canceled        bool
	RedirectHops    int
	FinishedAt      time.Time
}

// Journal 会话级交换流水
type Journal struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开流水数据库并迁移表结构
func Open(dsn, prefix string, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&Exchange{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, log: l}, nil
}

// Record 记录一条已终结的交换
func (j *Journal) Record(ctx context.Context, sessionID domain.SessionID, req *traffic.Request, resp *traffic.Response, canceled bool) error {
	row := Exchange{
		SessionID:      string(sessionID),
		RequestID:      req.ID,
		URL:            req.URL,
		Method:         req.Method,
		ResourceType:   req.ResourceType,
		DocumentID:     req.DocumentID,
		RequestHeaders: marshalHeaders(req.Headers),
		Failure:        req.Failure,
		Canceled:       canceled,
		RedirectHops:   len(req.RedirectChain),
		FinishedAt:     time.Now(),
	}
	if resp != nil {
		row.Status = resp.Status
		row.StatusText = resp.StatusText
		row.ResponseHeaders = marshalHeaders(resp.Headers)
		if row.Failure == "" {
			row.Failure = resp.Failure
		}
	}
	return j.db.WithContext(ctx).Create(&row).Error
}

// BySession 返回某会话的全部交换记录，按落库顺序
func (j *Journal) BySession(ctx context.Context, sessionID domain.SessionID) ([]Exchange, error) {
	var rows []Exchange
	err := j.db.WithContext(ctx).
		Where("session_id = ?", string(sessionID)).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// DropSession 删除某会话的全部交换记录
func (j *Journal) DropSession(ctx context.Context, sessionID domain.SessionID) error {
	return j.db.WithContext(ctx).
		Where("session_id = ?", string(sessionID)).
		Delete(&Exchange{}).Error
}

func marshalHeaders(h traffic.Header) string {
	if len(h) == 0 {
		return "{}"
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(data)
}
