// groupbuyd runs the group-buy chat bot: it serves the slash command,
// dialog submission, and panel action endpoints, and maintains the
// WebSocket stream feeding the DM admin console. Flag/command wiring
// follows elchinoo-stormdb/cmd/pgstorm/main.go's cobra rootCmd
// pattern; log bootstrap follows cmd/polybot/main.go's
// zerolog.ConsoleWriter setup.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lekoOwO/groupbuy-bot/internal/app"
	"github.com/lekoOwO/groupbuy-bot/internal/config"
	"github.com/lekoOwO/groupbuy-bot/internal/httpapi"
)

const version = "1.0.0"

var (
	configPath string
	host       string
	port       int
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:     "groupbuyd",
	Short:   "揪團機器人伺服器",
	Version: version,
	RunE:    runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "設定檔路徑（預設 ./config.yaml）")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "覆寫設定檔中的監聽位址")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "覆寫設定檔中的監聽埠")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "開啟除錯紀錄層級")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "錯誤: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("找不到 .env 檔案，使用環境變數")
	}

	if configPath == "" {
		configPath = os.Getenv("GROUPBUY_CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("無法載入設定")
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if debug || cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("🚀 groupbuyd 啟動中...")

	state, err := app.New(cfg, configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化應用程式失敗")
	}
	defer func() {
		if err := state.Close(); err != nil {
			log.Error().Err(err).Msg("關閉資料庫連線失敗")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := httpapi.NewServer(addr, state)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go state.Stream.Run()
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP 伺服器啟動")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP 伺服器異常終止")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("收到終止訊號，開始優雅關閉")
	case <-ctx.Done():
	}

	state.Stream.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP 伺服器關閉時發生錯誤")
	}

	log.Info().Msg("👋 groupbuyd 已關閉")
	return nil
}
