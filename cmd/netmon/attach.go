package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cdppage/pkg/api"
	"cdppage/pkg/domain"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newAttachCmd() *cobra.Command {
	var (
		devtoolsURL string
		target      string
		intercept   bool
		noCache     bool
		query       string
		harPath     string
		username    string
		password    string
	)

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "附加页面目标并持续输出网络事件",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnv()
			if err != nil {
				return err
			}
			svc := api.NewService(log, cfg)

			id, err := svc.StartSession(domain.SessionConfig{
				DevToolsURL:  devtoolsURL,
				Target:       domain.TargetID(target),
				DisableCache: noCache,
			})
			if err != nil {
				return err
			}
			log.Info("会话已启动", "sessionID", string(id))

			if username != "" {
				if err := svc.Authenticate(id, username, password); err != nil {
					return err
				}
			}
			if intercept {
				if err := svc.EnableInterception(id); err != nil {
					return err
				}
			}

			events, err := svc.SubscribeEvents(id)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for {
				select {
				case <-ctx.Done():
					if harPath != "" {
						if err := exportHAR(cfg, id, harPath); err != nil {
							log.Err(err, "导出 HAR 失败")
						}
					}
					return svc.StopSession(id)
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					printEvent(ev, query)
					// 拦截模式下无人裁决的路由直接放行，保持页面可用
					if intercept && ev.Type == domain.EventRoute {
						if err := svc.ResolveRoute(id, ev.RouteID, domain.RouteDecision{Action: domain.RouteContinue}); err != nil {
							log.Warn("放行路由失败", "routeID", ev.RouteID, "error", err)
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&devtoolsURL, "devtools-url", "", "DevTools 端点，缺省取配置文件")
	cmd.Flags().StringVar(&target, "target", "", "目标标识，缺省取第一个可用目标")
	cmd.Flags().BoolVar(&intercept, "intercept", false, "启用全量拦截（自动放行并记录）")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "停用浏览器缓存")
	cmd.Flags().StringVar(&query, "query", "", "gjson 路径，只输出事件中对应的字段")
	cmd.Flags().StringVar(&harPath, "har", "", "退出时将会话流水导出为 HAR 文件")
	cmd.Flags().StringVar(&username, "auth-user", "", "认证挑战用户名")
	cmd.Flags().StringVar(&password, "auth-pass", "", "认证挑战口令")
	return cmd
}

func printEvent(ev domain.NetworkEvent, query string) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if query != "" {
		res := gjson.GetBytes(data, query)
		if !res.Exists() {
			return
		}
		fmt.Println(res.String())
		return
	}
	fmt.Println(string(data))
}
