package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai_chat_mini/internal/clients/ocr"
	"ai_chat_mini/internal/clients/openai"
	"ai_chat_mini/internal/config"
	"ai_chat_mini/internal/handlers"
	"ai_chat_mini/internal/middleware"
	"ai_chat_mini/internal/routes"
	"ai_chat_mini/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("对话服务启动中...")

	configPath := flag.String("config", "config.yaml", "配置文件路径")
	printConfig := flag.Bool("print-config", false, "输出生效的配置后退出")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	if cfg.Auth.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建上游客户端
	upstream, err := openai.NewClient(openai.Config{
		BaseURL:    cfg.OpenAI.BaseURL,
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		HTTPSProxy: cfg.OpenAI.HTTPSProxy,
		Timeout:    cfg.OpenAI.Timeout,
	})
	if err != nil {
		log.Fatalf("创建上游客户端失败: %v", err)
	}
	if cfg.OpenAI.HTTPSProxy != "" {
		log.Printf("上游请求使用代理: %s", cfg.OpenAI.HTTPSProxy)
	}
	if !cfg.OCR.Enabled() {
		log.Printf("未配置OCR授权码，/api/ocr 请求将会失败")
	}

	generateService := services.NewGenerateService(cfg, upstream)
	ocrClient := ocr.NewClient(ocr.Config{URL: cfg.OCR.URL, AppCode: cfg.OCR.AppCode})

	engine := gin.New()
	middleware.Setup(engine)
	routes.RegisterRoutes(engine, cfg,
		handlers.NewGenerateHandler(generateService, cfg.WebSocket),
		handlers.NewOCRHandler(ocrClient),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP服务监听: %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("关闭服务失败: %v", err)
	}
}
