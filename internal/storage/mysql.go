package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/storage/models"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("talent-match-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，向OpenTelemetry上报数据库操作追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}
	return nil
}

type gormSpanKey struct{}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 记录不存在是正常业务分支，不作为错误上报
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// 确保MySQL实现了匹配核心的目录与向量读取接口
var (
	_ matching.CatalogStore       = (*MySQL)(nil)
	_ matching.StoredVectorSource = (*MySQL)(nil)
)

// MySQL 目录库：人员、岗位与其持久化向量
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	return silentDB.AutoMigrate(
		&models.PersonRecord{},
		&models.PositionRecord{},
		&models.EntityVector{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetPerson 按ID取人员，未找到返回 matching.ErrPersonNotFound
func (m *MySQL) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	var record models.PersonRecord
	if err := m.db.WithContext(ctx).First(&record, "person_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("查询人员 %s: %w", id, matching.ErrPersonNotFound)
		}
		return nil, fmt.Errorf("查询人员 %s 失败: %w", id, err)
	}
	return record.ToPerson()
}

// GetPosition 按ID取岗位，未找到返回 matching.ErrPositionNotFound
func (m *MySQL) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	var record models.PositionRecord
	if err := m.db.WithContext(ctx).First(&record, "position_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("查询岗位 %s: %w", id, matching.ErrPositionNotFound)
		}
		return nil, fmt.Errorf("查询岗位 %s 失败: %w", id, err)
	}
	return record.ToPosition()
}

// ListPeople 遍历全部人员（暴力兜底检索用）
func (m *MySQL) ListPeople(ctx context.Context) ([]*types.Person, error) {
	var records []models.PersonRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("遍历人员失败: %w", err)
	}

	people := make([]*types.Person, 0, len(records))
	for i := range records {
		person, err := records[i].ToPerson()
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}
	return people, nil
}

// ListPositions 遍历全部岗位
func (m *MySQL) ListPositions(ctx context.Context) ([]*types.Position, error) {
	var records []models.PositionRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("遍历岗位失败: %w", err)
	}

	positions := make([]*types.Position, 0, len(records))
	for i := range records {
		position, err := records[i].ToPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}
	return positions, nil
}

// UpsertPerson 写入或覆盖人员记录
func (m *MySQL) UpsertPerson(ctx context.Context, person *types.Person) error {
	record, err := models.NewPersonRecord(person)
	if err != nil {
		return err
	}
	if err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "person_id"}},
		UpdateAll: true,
	}).Create(record).Error; err != nil {
		return fmt.Errorf("写入人员 %s 失败: %w", person.PersonID, err)
	}
	return nil
}

// UpsertPosition 写入或覆盖岗位记录
func (m *MySQL) UpsertPosition(ctx context.Context, position *types.Position) error {
	record, err := models.NewPositionRecord(position)
	if err != nil {
		return err
	}
	if err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "position_id"}},
		UpdateAll: true,
	}).Create(record).Error; err != nil {
		return fmt.Errorf("写入岗位 %s 失败: %w", position.PositionID, err)
	}
	return nil
}

// DeletePerson 删除人员记录及其持久化向量
func (m *MySQL) DeletePerson(ctx context.Context, id string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.PersonRecord{}, "person_id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("删除人员 %s 失败: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("删除人员 %s: %w", id, matching.ErrPersonNotFound)
		}
		return tx.Delete(&models.EntityVector{}, "entity_id = ?", id).Error
	})
}

// DeletePosition 删除岗位记录及其持久化向量
func (m *MySQL) DeletePosition(ctx context.Context, id string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.PositionRecord{}, "position_id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("删除岗位 %s 失败: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("删除岗位 %s: %w", id, matching.ErrPositionNotFound)
		}
		return tx.Delete(&models.EntityVector{}, "entity_id = ?", id).Error
	})
}

// GetEntityVector 读取实体的持久化向量，未落库时返回空向量
func (m *MySQL) GetEntityVector(ctx context.Context, collection, entityID string) ([]float64, error) {
	var record models.EntityVector
	if err := m.db.WithContext(ctx).First(&record, "collection = ? AND entity_id = ?", collection, entityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询实体向量失败: %w", err)
	}
	return record.DecodeVector()
}

// SaveEntityVector 落库实体向量；空向量表示实体当前没有语义向量，删除旧记录
func (m *MySQL) SaveEntityVector(ctx context.Context, collection, entityID string, vector []float64, modelVersion string) error {
	if len(vector) == 0 {
		return m.db.WithContext(ctx).
			Delete(&models.EntityVector{}, "collection = ? AND entity_id = ?", collection, entityID).Error
	}

	vectorJSON, err := models.EncodeVector(vector)
	if err != nil {
		return err
	}
	record := &models.EntityVector{
		Collection:   collection,
		EntityID:     entityID,
		VectorJSON:   vectorJSON,
		ModelVersion: modelVersion,
	}
	if err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "entity_id"}},
		UpdateAll: true,
	}).Create(record).Error; err != nil {
		return fmt.Errorf("落库实体向量失败: %w", err)
	}
	return nil
}
