package main

import (
	"fmt"
	"os"

	"cdppage/internal/config"
	"cdppage/internal/logger"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "netmon",
		Short: "CDP 页面网络监听工具",
		Long:  "连接 DevTools 目标，重建请求/响应生命周期并支持全量拦截与流水导出",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径")
	root.AddCommand(newAttachCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEnv() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})
	return cfg, log, nil
}
