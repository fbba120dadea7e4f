package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/api"
	"github.com/jengzang/zone-density/internal/app"
	"github.com/jengzang/zone-density/internal/config"
	"github.com/jengzang/zone-density/internal/handler"
	"github.com/jengzang/zone-density/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// 初始化数据库和服务
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Density.RecoverInterrupted(); err != nil {
		return err
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	router := api.SetupRouter(cfg, api.Handlers{
		Health: handler.NewHealthHandler(a.DB),
		Runs:   handler.NewRunHandler(a.Density),
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		// 启动服务器
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
