package router

import (
	"context"

	"talent-match-go/internal/api/handler"
	"talent-match-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, smartHandler *handler.SmartHandler, catalogHandler *handler.CatalogHandler) {
	api := h.Group("/api/v1")

	// 健康检查不走鉴权
	api.GET("/health", catalogHandler.HandleHealth)

	// 配置了API Key时启用keyauth中间件
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == cfg.Server.APIKey, nil
			}),
		))
	}

	// 智能匹配查询
	smart := api.Group("/smart")
	smart.GET("/candidates/top", smartHandler.HandleTopCandidates)
	smart.GET("/candidates/similar", smartHandler.HandleSimilarCandidates)
	smart.GET("/positions/top", smartHandler.HandleTopPositions)
	smart.GET("/positions/similar", smartHandler.HandleSimilarPositions)
	smart.GET("/gaps", smartHandler.HandleSkillGaps)
	smart.GET("/plan", smartHandler.HandleLearningPlan)

	// 人员目录
	api.POST("/people", catalogHandler.HandleUpsertPerson)
	api.GET("/people", catalogHandler.HandleListPeople)
	api.GET("/people/:person_id", catalogHandler.HandleGetPerson)
	api.DELETE("/people/:person_id", catalogHandler.HandleDeletePerson)

	// 岗位目录
	api.POST("/positions", catalogHandler.HandleUpsertPosition)
	api.GET("/positions", catalogHandler.HandleListPositions)
	api.DELETE("/positions/:position_id", catalogHandler.HandleDeletePosition)
	api.GET("/positions/:position_id", catalogHandler.HandleGetPosition)
}
