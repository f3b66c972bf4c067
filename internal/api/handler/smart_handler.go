package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/recommend"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// searchLockTTL 回填锁的过期时间，覆盖一次全量暴力匹配的耗时上限
const searchLockTTL = 30 * time.Second

// SmartHandler 负责智能匹配相关的查询请求：
// 双向Top-N匹配、同类型相似检索、技能差距报告与学习计划。
type SmartHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	matcher *matching.Service
	planner *recommend.LearningPlanGenerator
	logger  *log.Logger
}

// NewSmartHandler 创建一个新的 SmartHandler 实例。
func NewSmartHandler(cfg *config.Config, st *storage.Storage, matcher *matching.Service, planner *recommend.LearningPlanGenerator) *SmartHandler {
	return &SmartHandler{
		cfg:     cfg,
		storage: st,
		matcher: matcher,
		planner: planner,
		logger:  log.New(os.Stdout, "[SmartHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// parseLimit 解析limit查询参数，非法或缺省时回退默认值
func parseLimit(c *app.RequestContext, defaultLimit int) int {
	limitStr := c.Query("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}

// respondMatchError 将匹配核心的错误翻译为HTTP响应
func (h *SmartHandler) respondMatchError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, matching.ErrPersonNotFound):
		c.JSON(consts.StatusNotFound, map[string]string{"error": "人员不存在"})
	case errors.Is(err, matching.ErrPositionNotFound):
		c.JSON(consts.StatusNotFound, map[string]string{"error": "岗位不存在"})
	default:
		h.logger.Printf("匹配查询失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "匹配查询失败"})
	}
}

// cachedMatchQuery 按 kind:pivot:limit 维度做Redis结果缓存的查询骨架。
// 缓存层故障只记日志，查询照常走计算路径。
func (h *SmartHandler) cachedMatchQuery(
	ctx context.Context,
	c *app.RequestContext,
	kind, pivotID string,
	limit int,
	query func(context.Context) ([]types.MatchResult, error),
) {
	cacheKey := storage.MatchCacheKey(kind, pivotID, limit)

	// lockValue非空表示本请求持有回填锁，负责写缓存
	var lockValue string
	lockKey := constants.SearchLockPrefix + cacheKey

	if h.storage.Redis != nil {
		cached, hit, err := h.storage.Redis.GetCachedMatchResults(ctx, cacheKey)
		if err != nil {
			h.logger.Printf("读取匹配缓存失败 (key=%s): %v", cacheKey, err)
		} else if hit {
			c.JSON(consts.StatusOK, map[string]interface{}{
				"data":   cached,
				"count":  len(cached),
				"cached": true,
			})
			return
		}

		// 缓存未命中时抢占回填锁，避免同一查询的并发请求重复写缓存。
		// 未抢到锁的请求照常计算并返回，只是不回填。
		lockValue, err = h.storage.Redis.AcquireLock(ctx, lockKey, searchLockTTL)
		if err != nil {
			h.logger.Printf("获取回填锁失败 (key=%s): %v", lockKey, err)
		}
	}

	start := time.Now()
	results, err := query(ctx)
	if err != nil {
		h.respondMatchError(c, err)
		return
	}
	h.logger.Printf("匹配查询完成 kind=%s pivot=%s limit=%d 耗时=%v 结果数=%d",
		kind, pivotID, limit, time.Since(start), len(results))

	if h.storage.Redis != nil && lockValue != "" {
		if err := h.storage.Redis.CacheMatchResults(ctx, cacheKey, results); err != nil {
			h.logger.Printf("写入匹配缓存失败 (key=%s): %v", cacheKey, err)
		}
		if _, err := h.storage.Redis.ReleaseLock(ctx, lockKey, lockValue); err != nil {
			h.logger.Printf("释放回填锁失败 (key=%s): %v", lockKey, err)
		}
	}

	if results == nil {
		results = []types.MatchResult{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"data":   results,
		"count":  len(results),
		"cached": false,
	})
}

// HandleTopCandidates 处理岗位侧的Top-N候选人查询。
// GET /api/v1/smart/candidates/top?position_id=&limit=
func (h *SmartHandler) HandleTopCandidates(ctx context.Context, c *app.RequestContext) {
	positionID := c.Query("position_id")
	if positionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "position_id 不能为空"})
		return
	}
	limit := parseLimit(c, 10)

	h.cachedMatchQuery(ctx, c, "top_candidates", positionID, limit, func(ctx context.Context) ([]types.MatchResult, error) {
		return h.matcher.GetTopCandidatesForPosition(ctx, positionID, limit)
	})
}

// HandleTopPositions 处理候选人侧的Top-N岗位查询。
// GET /api/v1/smart/positions/top?candidate_id=&limit=
func (h *SmartHandler) HandleTopPositions(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Query("candidate_id")
	if candidateID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 不能为空"})
		return
	}
	limit := parseLimit(c, 10)

	h.cachedMatchQuery(ctx, c, "top_positions", candidateID, limit, func(ctx context.Context) ([]types.MatchResult, error) {
		return h.matcher.GetTopPositionsForCandidate(ctx, candidateID, limit)
	})
}

// HandleSimilarCandidates 处理相似人员查询（排除本人）。
// GET /api/v1/smart/candidates/similar?candidate_id=&limit=
func (h *SmartHandler) HandleSimilarCandidates(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Query("candidate_id")
	if candidateID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 不能为空"})
		return
	}
	limit := parseLimit(c, 10)

	h.cachedMatchQuery(ctx, c, "similar_candidates", candidateID, limit, func(ctx context.Context) ([]types.MatchResult, error) {
		return h.matcher.GetSimilarPeople(ctx, candidateID, limit)
	})
}

// HandleSimilarPositions 处理相似岗位查询（排除自身）。
// GET /api/v1/smart/positions/similar?position_id=&limit=
func (h *SmartHandler) HandleSimilarPositions(ctx context.Context, c *app.RequestContext) {
	positionID := c.Query("position_id")
	if positionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "position_id 不能为空"})
		return
	}
	limit := parseLimit(c, 10)

	h.cachedMatchQuery(ctx, c, "similar_positions", positionID, limit, func(ctx context.Context) ([]types.MatchResult, error) {
		return h.matcher.GetSimilarPositions(ctx, positionID, limit)
	})
}

// HandleSkillGaps 处理人员对岗位的逐画像差距报告查询。
// GET /api/v1/smart/gaps?candidate_id=&position_id=
func (h *SmartHandler) HandleSkillGaps(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Query("candidate_id")
	positionID := c.Query("position_id")
	if candidateID == "" || positionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 和 position_id 不能为空"})
		return
	}

	reports, err := h.matcher.GetSkillGaps(ctx, candidateID, positionID)
	if err != nil {
		h.respondMatchError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id": candidateID,
		"position_id":  positionID,
		"reports":      reports,
	})
}

// HandleLearningPlan 基于差距报告生成学习计划。
// GET /api/v1/smart/plan?candidate_id=&position_id=
func (h *SmartHandler) HandleLearningPlan(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Query("candidate_id")
	positionID := c.Query("position_id")
	if candidateID == "" || positionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "candidate_id 和 position_id 不能为空"})
		return
	}

	person, err := h.storage.MySQL.GetPerson(ctx, candidateID)
	if err != nil {
		h.respondMatchError(c, err)
		return
	}
	position, err := h.storage.MySQL.GetPosition(ctx, positionID)
	if err != nil {
		h.respondMatchError(c, err)
		return
	}

	reports, err := h.matcher.GetSkillGaps(ctx, candidateID, positionID)
	if err != nil {
		h.respondMatchError(c, err)
		return
	}

	plan, err := h.planner.GeneratePlan(ctx, person, position, reports)
	if err != nil {
		h.logger.Printf("生成学习计划失败 (person=%s position=%s): %v", candidateID, positionID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "生成学习计划失败"})
		return
	}

	c.JSON(consts.StatusOK, plan)
}
