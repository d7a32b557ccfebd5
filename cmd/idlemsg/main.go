package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idlemsg/internal/config"
	"idlemsg/internal/logger"
	"idlemsg/internal/mcpserver"
	"idlemsg/internal/service"
	"idlemsg/internal/storage"
	"idlemsg/pkg/api"
)

var (
	cfgPath     string
	devtoolsURL string
	headless    bool
)

var rootCmd = &cobra.Command{
	Use:   "idlemsg",
	Short: "闲鱼消息对账工具，通过MCP协议在stdio上提供服务",
	Long: `连接一个开启了远程调试的浏览器，拦截闲鱼消息接口的响应，
与页面DOM合并去重后，以MCP工具的形式提供会话与消息读取、
未读统计和回复发送能力。`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "配置文件路径")
	rootCmd.Flags().StringVar(&devtoolsURL, "devtools-url", "", "浏览器DevTools地址，覆盖配置文件")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "以无头模式运行，覆盖配置文件")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if devtoolsURL != "" {
		cfg.Browser.DevToolsURL = devtoolsURL
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = headless
	}

	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	var opts []service.Option
	if cfg.Sqlite.Enabled {
		store, err := storage.Open(cfg.Sqlite.Dsn, l)
		if err != nil {
			return fmt.Errorf("打开归档存储失败: %w", err)
		}
		defer store.Close()
		opts = append(opts, service.WithArchiver(store))
	}

	svc := api.NewService(cfg, l, opts...)
	sid, err := svc.StartSession(context.Background())
	if err != nil {
		return fmt.Errorf("启动会话失败: %w", err)
	}
	defer svc.StopSession(sid)

	l.Info("服务启动", "sessionID", string(sid), "devtools", cfg.Browser.DevToolsURL)
	return mcpserver.New(svc, sid, l).Serve()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
