package storage

import (
	"time"

	"talent-match-go/internal/constants"
)

// 实体类型与事件动作常量
const (
	EntityKindPerson   = "person"
	EntityKindPosition = "position"

	EntityActionUpsert = "upsert"
	EntityActionDelete = "delete"
)

// EntityChangedEvent 实体变更事件消息。
// 目录写入（新增/更新/删除）后发布，向量化消费者据此重算或清理嵌入。
type EntityChangedEvent struct {
	EventID   string    `json:"event_id"`    // 事件唯一标识
	Kind      string    `json:"kind"`        // person 或 position
	EntityID  string    `json:"entity_id"`   // 实体ID
	Action    string    `json:"action"`      // upsert 或 delete
	Timestamp time.Time `json:"timestamp"`   // 事件产生时间
}

// CollectionFor 返回实体类型对应的向量集合名
func CollectionFor(kind string) string {
	switch kind {
	case EntityKindPerson:
		return constants.PeopleCollection
	case EntityKindPosition:
		return constants.PositionsCollection
	default:
		return ""
	}
}
