package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"talent-match-go/internal/config"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/vectorization"
)

// VectorizeWorker 消费实体变更事件并维护两份向量副本：
// Qdrant中的ANN检索副本与MySQL entity_vectors中的兜底副本。
// 目录写入即发事件，嵌入始终随内容重算（写时重算）。
type VectorizeWorker struct {
	storage    *storage.Storage
	vectorizer *vectorization.Service
	cfg        *config.Config
}

// NewVectorizeWorker 创建向量化工作者
func NewVectorizeWorker(st *storage.Storage, vectorizer *vectorization.Service, cfg *config.Config) (*VectorizeWorker, error) {
	if st == nil || st.MySQL == nil {
		return nil, fmt.Errorf("向量化工作者需要MySQL目录存储")
	}
	if vectorizer == nil {
		return nil, fmt.Errorf("向量化服务不能为空")
	}
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	return &VectorizeWorker{
		storage:    st,
		vectorizer: vectorizer,
		cfg:        cfg,
	}, nil
}

// Start 启动消费者。RabbitMQ未配置时返回错误，调用方可据此降级为同步向量化。
func (w *VectorizeWorker) Start(ctx context.Context) error {
	if w.storage.RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ未初始化，无法启动向量化消费者")
	}

	prefetch := w.cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 5
	}

	logger.Info().
		Str("queue", w.cfg.RabbitMQ.VectorizeQueue).
		Int("prefetch", prefetch).
		Msg("向量化消费者就绪")

	_, err := w.storage.RabbitMQ.StartConsumer(w.cfg.RabbitMQ.VectorizeQueue, prefetch, func(data []byte) bool {
		var event storage.EntityChangedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Error().Err(err).Msg("解析实体变更事件失败")
			// 消息格式损坏，重试无意义
			return true
		}
		if err := w.ProcessEvent(ctx, &event); err != nil {
			if errors.Is(err, matching.ErrPersonNotFound) || errors.Is(err, matching.ErrPositionNotFound) {
				// 事件到达时实体已被删除，清理后确认即可
				logger.Warn().
					Str("kind", event.Kind).
					Str("entity_id", event.EntityID).
					Msg("实体已不存在，跳过向量化")
				return true
			}
			logger.Error().
				Err(err).
				Str("kind", event.Kind).
				Str("entity_id", event.EntityID).
				Str("action", event.Action).
				Msg("处理实体变更事件失败")
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("启动向量化消费者失败: %w", err)
	}
	return nil
}

// ProcessEvent 处理一条实体变更事件
func (w *VectorizeWorker) ProcessEvent(ctx context.Context, event *storage.EntityChangedEvent) error {
	collection := storage.CollectionFor(event.Kind)
	if collection == "" {
		logger.Warn().Str("kind", event.Kind).Msg("未知的实体类型，丢弃事件")
		return nil
	}

	switch event.Action {
	case storage.EntityActionDelete:
		return w.removeVectors(ctx, collection, event.EntityID)
	case storage.EntityActionUpsert:
		return w.refreshVectors(ctx, event.Kind, collection, event.EntityID)
	default:
		logger.Warn().Str("action", event.Action).Msg("未知的事件动作，丢弃事件")
		return nil
	}
}

// refreshVectors 重算实体嵌入并写入两份副本
func (w *VectorizeWorker) refreshVectors(ctx context.Context, kind, collection, entityID string) error {
	text, vector, err := w.vectorizeEntity(ctx, kind, entityID)
	if err != nil {
		return err
	}
	logger.Debug().
		Str("entity_id", entityID).
		Str("text_preview", tracing.SafeVectorText(text)).
		Msg("实体描述文本已渲染")

	// 内容未变化时跳过重复写入。哈希绑定到具体实体，
	// 避免不同实体的相同文本互相吞掉向量写入。
	var digest string
	if w.storage.Redis != nil {
		digest = storage.TextMD5(fmt.Sprintf("%s:%s:%s", collection, entityID, text))
		exists, derr := w.storage.Redis.CheckAndAddEmbedTextMD5(ctx, digest)
		if derr != nil {
			logger.Warn().Err(derr).Str("entity_id", entityID).Msg("嵌入文本去重检查失败，继续写入")
			digest = ""
		} else if exists {
			stored, serr := w.storage.MySQL.GetEntityVector(ctx, collection, entityID)
			if serr == nil && len(stored) > 0 {
				logger.Debug().
					Str("collection", collection).
					Str("entity_id", entityID).
					Msg("实体内容未变化，跳过向量写入")
				return nil
			}
			// 集合中有旧哈希但兜底向量缺失（如删除后重建），照常写入
		}
	}

	if err := w.writeVectors(ctx, kind, collection, entityID, vector); err != nil {
		// 写入失败时撤销本次登记的哈希，重试消息不会被去重挡掉
		if digest != "" {
			if rerr := w.storage.Redis.RemoveEmbedTextMD5(ctx, digest); rerr != nil {
				logger.Warn().Err(rerr).Str("entity_id", entityID).Msg("回滚嵌入文本哈希失败")
			}
		}
		return err
	}

	logger.Info().
		Str("collection", collection).
		Str("entity_id", entityID).
		Int("dimensions", len(vector)).
		Msg("实体向量已更新")
	return nil
}

// writeVectors 将向量写入Qdrant与MySQL两份副本
func (w *VectorizeWorker) writeVectors(ctx context.Context, kind, collection, entityID string, vector []float64) error {
	if w.storage.Qdrant != nil {
		payload := map[string]interface{}{"kind": kind}
		if err := w.storage.Qdrant.UpsertEntityVector(ctx, collection, entityID, vector, payload); err != nil {
			return fmt.Errorf("写入Qdrant向量失败: %w", err)
		}
	}
	if err := w.storage.MySQL.SaveEntityVector(ctx, collection, entityID, vector, w.cfg.Aliyun.Embedding.Model); err != nil {
		return fmt.Errorf("写入兜底向量失败: %w", err)
	}
	return nil
}

// removeVectors 清理实体的全部向量副本
func (w *VectorizeWorker) removeVectors(ctx context.Context, collection, entityID string) error {
	if w.storage.Qdrant != nil {
		if err := w.storage.Qdrant.DeleteEntityVector(ctx, collection, entityID); err != nil {
			return fmt.Errorf("删除Qdrant向量失败: %w", err)
		}
	}
	if err := w.storage.MySQL.SaveEntityVector(ctx, collection, entityID, nil, ""); err != nil {
		return fmt.Errorf("删除兜底向量失败: %w", err)
	}

	logger.Info().
		Str("collection", collection).
		Str("entity_id", entityID).
		Msg("实体向量已清理")
	return nil
}

// vectorizeEntity 加载实体并计算嵌入，同时返回嵌入文本用于去重
func (w *VectorizeWorker) vectorizeEntity(ctx context.Context, kind, entityID string) (string, []float64, error) {
	switch kind {
	case storage.EntityKindPerson:
		person, err := w.storage.MySQL.GetPerson(ctx, entityID)
		if err != nil {
			return "", nil, err
		}
		vector, err := w.vectorizer.VectorizePerson(ctx, person)
		if err != nil {
			return "", nil, fmt.Errorf("计算人员嵌入失败: %w", err)
		}
		return vectorization.FormatPersonText(person), vector, nil
	case storage.EntityKindPosition:
		position, err := w.storage.MySQL.GetPosition(ctx, entityID)
		if err != nil {
			return "", nil, err
		}
		vector, err := w.vectorizer.VectorizePosition(ctx, position)
		if err != nil {
			return "", nil, fmt.Errorf("计算岗位嵌入失败: %w", err)
		}
		return vectorization.FormatPositionText(position), vector, nil
	default:
		return "", nil, fmt.Errorf("未知的实体类型: %s", kind)
	}
}

// 类型断言：确保工作者满足同步兜底所需的最小接口
var _ EntityVectorRefresher = (*VectorizeWorker)(nil)

// EntityVectorRefresher 供API层在RabbitMQ不可用时同步刷新向量
type EntityVectorRefresher interface {
	ProcessEvent(ctx context.Context, event *storage.EntityChangedEvent) error
}
