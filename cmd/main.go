package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent-match-go/internal/api/handler"
	"talent-match-go/internal/api/router"
	"talent-match-go/internal/config"
	"talent-match-go/internal/embedding"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/processor"
	"talent-match-go/internal/recommend"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/vectorization"

	zlog "github.com/rs/zerolog/log"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"

	appCoreLogger "talent-match-go/internal/logger"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
)

var (
	version     = "1.0.0"           //nolint:gochecknoglobals
	serviceName = "talent-match-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	initLogger(cfg)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 嵌入客户端。未配置API Key时向量化服务返回空向量，
	// 匹配核心把语义项当作0分处理，技能重合与类别项仍然有效。
	var textEmbedder embedding.TextEmbedder
	if cfg.Aliyun.APIKey != "" {
		aliyunEmbedder, err := embedding.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
		if err != nil {
			glog.Fatalf("初始化阿里云Embedder失败: %v", err)
		}
		textEmbedder = aliyunEmbedder
		glog.Info("阿里云Embedder初始化成功")
	} else {
		glog.Warn("未配置Aliyun API Key，语义相似度将退化为0")
	}

	vectorizerLogger := log.New(appCoreLogger.Logger, "[Vectorizer] ", log.LstdFlags|log.Lshortfile)
	vectorizer := vectorization.NewService(textEmbedder, vectorization.WithLogger(vectorizerLogger))
	glog.Info("向量化服务初始化成功")

	// 匹配编排器：Qdrant可用时走ANN，失败或未配置时回退到目录暴力扫描
	matchOpts := []matching.Option{
		matching.WithStoredVectors(storageManager.MySQL),
	}
	if storageManager.Qdrant != nil {
		matchOpts = append(matchOpts, matching.WithVectorSearcher(storageManager.Qdrant))
	}
	if cfg.Qdrant.DefaultSearchLimit > 0 {
		matchOpts = append(matchOpts, matching.WithDefaultLimit(cfg.Qdrant.DefaultSearchLimit))
	}
	matcher, err := matching.NewService(storageManager.MySQL, vectorizer, matchOpts...)
	if err != nil {
		glog.Fatalf("初始化匹配服务失败: %v", err)
	}
	glog.Info("匹配服务初始化成功")

	// 学习计划生成器：有API Key走通义千问，否则走确定性模板
	courseCatalog, err := recommend.LoadCourseCatalog(cfg.Recommender.CourseCatalogPath)
	if err != nil {
		glog.Fatalf("加载课程目录失败: %v", err)
	}
	var planOpts []recommend.GeneratorOption
	if cfg.Aliyun.APIKey != "" {
		var qwenOpts []recommend.QwenOption
		if cfg.Recommender.Temperature > 0 {
			qwenOpts = append(qwenOpts, recommend.WithTemperature(cfg.Recommender.Temperature))
		}
		if cfg.Recommender.MaxTokens > 0 {
			qwenOpts = append(qwenOpts, recommend.WithMaxTokens(cfg.Recommender.MaxTokens))
		}
		chatModel, err := recommend.NewQwenChatModel(cfg.Aliyun.APIKey, cfg.Recommender.ModelName, qwenOpts...)
		if err != nil {
			glog.Fatalf("初始化通义千问模型失败: %v", err)
		}
		planOpts = append(planOpts, recommend.WithChatModel(chatModel))
		glog.Info("通义千问学习计划模型初始化成功")
	} else {
		glog.Warn("未配置Aliyun API Key，学习计划将使用确定性模板")
	}
	if cfg.Recommender.PlanTimeout != "" {
		if d, perr := time.ParseDuration(cfg.Recommender.PlanTimeout); perr == nil {
			planOpts = append(planOpts, recommend.WithPlanTimeout(d))
		} else {
			glog.Warnf("解析planTimeout失败 (%s): %v，使用默认值", cfg.Recommender.PlanTimeout, perr)
		}
	}
	planner := recommend.NewLearningPlanGenerator(courseCatalog, planOpts...)
	glog.Info("学习计划生成器初始化成功")

	// 向量化工作者：消费实体变更事件，维护Qdrant与MySQL两份向量副本
	vectorizeWorker, err := processor.NewVectorizeWorker(storageManager, vectorizer, cfg)
	if err != nil {
		glog.Fatalf("初始化向量化工作者失败: %v", err)
	}
	if storageManager.RabbitMQ != nil {
		go func() {
			if err := vectorizeWorker.Start(ctx); err != nil {
				glog.Errorf("启动向量化消费者失败: %v", err)
			}
		}()
	} else {
		glog.Warn("RabbitMQ未配置，目录写入将同步刷新向量")
	}

	smartHandler := handler.NewSmartHandler(cfg, storageManager, matcher, planner)
	catalogHandler := handler.NewCatalogHandler(cfg, storageManager, vectorizeWorker)
	glog.Info("API处理器初始化成功")

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, smartHandler, catalogHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("%s v%s HTTP 服务器启动中，监听地址: %s", serviceName, version, cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 按配置初始化全局日志；配置加载失败时用默认值兜底，
// 保证后续的Fatalf仍有可用的输出。
func initLogger(cfg *config.Config) {
	logConfig := appCoreLogger.Config{
		Level:      "info",
		Format:     "pretty",
		TimeFormat: time.RFC3339,
	}
	if cfg != nil {
		logConfig.Level = cfg.Logger.Level
		logConfig.Format = cfg.Logger.Format
		logConfig.TimeFormat = cfg.Logger.TimeFormat
		logConfig.ReportCaller = cfg.Logger.ReportCaller
	}

	appCoreLogger.Init(logConfig)
	appCoreLogger.Logger = appCoreLogger.Logger.With().
		Str("app", serviceName).
		Str("version", version).
		Logger()
	zlog.Logger = appCoreLogger.Logger

	// Hertz 日志走同一个zerolog实例
	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(hertzLogLevel(logConfig.Level))
}

func hertzLogLevel(level string) glog.Level {
	switch level {
	case "debug":
		return glog.LevelDebug
	case "warn":
		return glog.LevelWarn
	case "error":
		return glog.LevelError
	default:
		return glog.LevelInfo
	}
}
