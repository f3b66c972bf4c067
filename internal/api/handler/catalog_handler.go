package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/processor"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
)

// CatalogHandler 负责人员与岗位目录的写入与查询。
// 每次目录写入都会触发向量重算（优先走RabbitMQ事件，退化为同步刷新）并使匹配缓存失效。
type CatalogHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	refresher processor.EntityVectorRefresher
	logger    *log.Logger
}

// NewCatalogHandler 创建一个新的 CatalogHandler 实例。
// refresher 可为 nil，此时RabbitMQ不可用的部署里向量只能靠兜底暴力扫描现算。
func NewCatalogHandler(cfg *config.Config, st *storage.Storage, refresher processor.EntityVectorRefresher) *CatalogHandler {
	return &CatalogHandler{
		cfg:       cfg,
		storage:   st,
		refresher: refresher,
		logger:    log.New(os.Stdout, "[CatalogHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleHealth 健康检查。Qdrant可用时附带两个向量集合的点计数，
// 便于快速判断目录与向量索引是否脱节。
func (h *CatalogHandler) HandleHealth(c context.Context, ctx *app.RequestContext) {
	resp := utils.H{"status": "ok"}
	if h.storage.Qdrant != nil {
		points := utils.H{}
		for _, collection := range []string{constants.PeopleCollection, constants.PositionsCollection} {
			count, err := h.storage.Qdrant.CountPoints(c, collection)
			if err != nil {
				h.logger.Printf("统计向量点数失败 (collection=%s): %v", collection, err)
				continue
			}
			points[collection] = count
		}
		resp["vector_points"] = points
	}
	ctx.JSON(consts.StatusOK, resp)
}

// notifyEntityChanged 发布实体变更事件；事件链路不可用时同步刷新向量。
// 两条路径都失败只记日志：目录写入已落库，检索会退化到暴力扫描但结果仍正确。
func (h *CatalogHandler) notifyEntityChanged(ctx context.Context, kind, entityID, action string) {
	event := &storage.EntityChangedEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		EntityID:  entityID,
		Action:    action,
		Timestamp: time.Now(),
	}

	if h.storage.RabbitMQ != nil {
		err := h.storage.RabbitMQ.PublishVectorizeEvent(ctx, event)
		if err == nil {
			return
		}
		h.logger.Printf("发布实体变更事件失败 (kind=%s id=%s): %v，尝试同步刷新", kind, entityID, err)
	}

	if h.refresher != nil {
		if err := h.refresher.ProcessEvent(ctx, event); err != nil {
			h.logger.Printf("同步刷新向量失败 (kind=%s id=%s): %v", kind, entityID, err)
		}
	}
}

// invalidateMatchCache 目录变更后清空全部匹配结果缓存
func (h *CatalogHandler) invalidateMatchCache(ctx context.Context) {
	if h.storage.Redis == nil {
		return
	}
	if err := h.storage.Redis.InvalidateMatchCache(ctx); err != nil {
		h.logger.Printf("清除匹配缓存失败: %v", err)
	}
}

// HandleUpsertPerson 新增或更新人员。
// POST /api/v1/people
func (h *CatalogHandler) HandleUpsertPerson(ctx context.Context, c *app.RequestContext) {
	var person types.Person
	if err := json.Unmarshal(c.Request.Body(), &person); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体不是合法的JSON"})
		return
	}
	if person.PersonID == "" {
		person.PersonID = types.NewEntityID()
	}
	if err := person.Validate(); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.storage.MySQL.UpsertPerson(ctx, &person); err != nil {
		h.logger.Printf("写入人员失败 (id=%s): %v", person.PersonID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "写入人员失败"})
		return
	}

	h.notifyEntityChanged(ctx, storage.EntityKindPerson, person.PersonID, storage.EntityActionUpsert)
	h.invalidateMatchCache(ctx)

	// 日志中的姓名做掩码处理
	h.logger.Printf("人员已保存 id=%s name=%s", person.PersonID, tracing.MaskPII(person.Name))

	c.JSON(consts.StatusOK, map[string]interface{}{
		"person_id": person.PersonID,
		"message":   "人员已保存",
	})
}

// HandleGetPerson 查询单个人员。
// GET /api/v1/people/:person_id
func (h *CatalogHandler) HandleGetPerson(ctx context.Context, c *app.RequestContext) {
	personID := c.Param("person_id")
	person, err := h.storage.MySQL.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, matching.ErrPersonNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "人员不存在"})
			return
		}
		h.logger.Printf("查询人员失败 (id=%s): %v", personID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询人员失败"})
		return
	}
	c.JSON(consts.StatusOK, person)
}

// HandleListPeople 列出全部人员。
// GET /api/v1/people
func (h *CatalogHandler) HandleListPeople(ctx context.Context, c *app.RequestContext) {
	people, err := h.storage.MySQL.ListPeople(ctx)
	if err != nil {
		h.logger.Printf("列出人员失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "列出人员失败"})
		return
	}
	if people == nil {
		people = []*types.Person{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"data":  people,
		"count": len(people),
	})
}

// HandleDeletePerson 删除人员及其向量。
// DELETE /api/v1/people/:person_id
func (h *CatalogHandler) HandleDeletePerson(ctx context.Context, c *app.RequestContext) {
	personID := c.Param("person_id")
	if err := h.storage.MySQL.DeletePerson(ctx, personID); err != nil {
		if errors.Is(err, matching.ErrPersonNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "人员不存在"})
			return
		}
		h.logger.Printf("删除人员失败 (id=%s): %v", personID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "删除人员失败"})
		return
	}

	h.notifyEntityChanged(ctx, storage.EntityKindPerson, personID, storage.EntityActionDelete)
	h.invalidateMatchCache(ctx)

	c.JSON(consts.StatusOK, map[string]string{"message": "人员已删除"})
}

// HandleUpsertPosition 新增或更新岗位。
// POST /api/v1/positions
func (h *CatalogHandler) HandleUpsertPosition(ctx context.Context, c *app.RequestContext) {
	var position types.Position
	if err := json.Unmarshal(c.Request.Body(), &position); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体不是合法的JSON"})
		return
	}
	if position.PositionID == "" {
		position.PositionID = types.NewEntityID()
	}
	for i := range position.Profiles {
		if position.Profiles[i].ProfileID == "" {
			position.Profiles[i].ProfileID = types.NewEntityID()
		}
	}
	if err := position.Validate(); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.storage.MySQL.UpsertPosition(ctx, &position); err != nil {
		h.logger.Printf("写入岗位失败 (id=%s): %v", position.PositionID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "写入岗位失败"})
		return
	}

	h.notifyEntityChanged(ctx, storage.EntityKindPosition, position.PositionID, storage.EntityActionUpsert)
	h.invalidateMatchCache(ctx)

	c.JSON(consts.StatusOK, map[string]interface{}{
		"position_id": position.PositionID,
		"message":     "岗位已保存",
	})
}

// HandleGetPosition 查询单个岗位。
// GET /api/v1/positions/:position_id
func (h *CatalogHandler) HandleGetPosition(ctx context.Context, c *app.RequestContext) {
	positionID := c.Param("position_id")
	position, err := h.storage.MySQL.GetPosition(ctx, positionID)
	if err != nil {
		if errors.Is(err, matching.ErrPositionNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "岗位不存在"})
			return
		}
		h.logger.Printf("查询岗位失败 (id=%s): %v", positionID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询岗位失败"})
		return
	}
	c.JSON(consts.StatusOK, position)
}

// HandleListPositions 列出全部岗位。
// GET /api/v1/positions
func (h *CatalogHandler) HandleListPositions(ctx context.Context, c *app.RequestContext) {
	positions, err := h.storage.MySQL.ListPositions(ctx)
	if err != nil {
		h.logger.Printf("列出岗位失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "列出岗位失败"})
		return
	}
	if positions == nil {
		positions = []*types.Position{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"data":  positions,
		"count": len(positions),
	})
}

// HandleDeletePosition 删除岗位及其向量。
// DELETE /api/v1/positions/:position_id
func (h *CatalogHandler) HandleDeletePosition(ctx context.Context, c *app.RequestContext) {
	positionID := c.Param("position_id")
	if err := h.storage.MySQL.DeletePosition(ctx, positionID); err != nil {
		if errors.Is(err, matching.ErrPositionNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "岗位不存在"})
			return
		}
		h.logger.Printf("删除岗位失败 (id=%s): %v", positionID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "删除岗位失败"})
		return
	}

	h.notifyEntityChanged(ctx, storage.EntityKindPosition, positionID, storage.EntityActionDelete)
	h.invalidateMatchCache(ctx)

	c.JSON(consts.StatusOK, map[string]string{"message": "岗位已删除"})
}
