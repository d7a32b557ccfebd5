package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	logger2 "idlemsg/internal/logger"
)

// CaptureRecord 拦截到的mtop响应归档记录
type CaptureRecord struct {
	ID         uint   `gorm:"primaryKey"`
	APIName    string `gorm:"index;size:128"`
	SessionID  string `gorm:"index;size:64"`
	Body       []byte
	CapturedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// TableName 表名
func (CaptureRecord) TableName() string {
	return "capture_records"
}

// Store 基于sqlite的抓包归档存储
type Store struct {
	db  *gorm.DB
	log logger2.Logger
}

// Open 打开（必要时创建）归档数据库
func Open(dsn string, l logger2.Logger) (*Store, error) {
	if l == nil {
		l = logger2.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(l),
	})
	if err != nil {
		return nil, fmt.Errorf("打开归档数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&CaptureRecord{}); err != nil {
		return nil, fmt.Errorf("归档表迁移失败: %w", err)
	}
	return &Store{db: db, log: l}, nil
}

// SaveCapture 归档一条拦截到的响应体
func (s *Store) SaveCapture(apiName, sessionID string, body []byte, capturedAt time.Time) error {
	rec := CaptureRecord{
		APIName:    apiName,
		SessionID:  sessionID,
		Body:       body,
		CapturedAt: capturedAt,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("归档抓包记录失败: %w", err)
	}
	return nil
}

// Recent 查询某接口最近的归档记录，用于排查抓包问题
func (s *Store) Recent(apiName string, limit int) ([]CaptureRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []CaptureRecord
	err := s.db.
		Where("api_name = ?", apiName).
		Order("captured_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询归档记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
