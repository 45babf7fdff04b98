package main

import (
	"context"
	"fmt"
	"os"

	"cdppage/internal/config"
	"cdppage/internal/logger"
	"cdppage/internal/storage"
	"cdppage/pkg/domain"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func newExportCmd() *cobra.Command {
	var (
		sessionID string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "将会话交换流水导出为 HAR 文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnv()
			if err != nil {
				return err
			}
			return exportSession(cfg, log, domain.SessionID(sessionID), out)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "会话标识")
	cmd.Flags().StringVar(&out, "out", "netmon.har", "输出文件路径")
	cmd.MarkFlagRequired("session")
	return cmd
}

func exportHAR(cfg *config.Config, id domain.SessionID, out string) error {
	return exportSession(cfg, logger.NewNop(), id, out)
}

func exportSession(cfg *config.Config, log logger.Logger, id domain.SessionID, out string) error {
	journal, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, log)
	if err != nil {
		return err
	}
	rows, err := journal.BySession(context.Background(), id)
	if err != nil {
		return err
	}
	har, err := buildHAR(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, har, 0o644); err != nil {
		return fmt.Errorf("write har: %w", err)
	}
	log.Info("导出完成", "entries", len(rows), "out", out)
	return nil
}

// buildHAR 以 sjson 逐条拼装 HAR 文档
func buildHAR(rows []storage.Exchange) ([]byte, error) {
	doc := []byte(`{"log":{"version":"1.2","creator":{"name":"netmon","version":"1.0.0"},"entries":[]}}`)
	var err error
	for _, row := range rows {
		entry := []byte(`{}`)
		if entry, err = sjson.SetBytes(entry, "startedDateTime", row.FinishedAt); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "request.method", row.Method); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "request.url", row.URL); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "request.headers", headerList(row.RequestHeaders)); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "response.status", row.Status); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "response.statusText", row.StatusText); err != nil {
			return nil, err
		}
		if entry, err = sjson.SetBytes(entry, "response.headers", headerList(row.ResponseHeaders)); err != nil {
			return nil, err
		}
		if row.Failure != "" {
			if entry, err = sjson.SetBytes(entry, "response._failure", row.Failure); err != nil {
				return nil, err
			}
		}
		if row.RedirectHops > 0 {
			if entry, err = sjson.SetBytes(entry, "_redirectHops", row.RedirectHops); err != nil {
				return nil, err
			}
		}
		if doc, err = sjson.SetRawBytes(doc, "log.entries.-1", entry); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// headerList 将落库的头部 JSON 对象转换为 HAR 的 name/value 列表
func headerList(raw string) []map[string]string {
	out := []map[string]string{}
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		out = append(out, map[string]string{"name": key.String(), "value": value.String()})
		return true
	})
	return out
}
