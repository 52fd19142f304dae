package repositories

import (
	"context"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepositoryImpl implements domain.SettingRepository using GORM
type SettingRepositoryImpl struct {
	base
}

// NewSettingRepository creates a new platform setting repository
func NewSettingRepository(db *gorm.DB) domain.SettingRepository {
	return &SettingRepositoryImpl{base{db: db}}
}

func (r *SettingRepositoryImpl) List(ctx context.Context) ([]domain.PlatformSetting, error) {
	var settings []domain.PlatformSetting
	err := r.conn(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}

func (r *SettingRepositoryImpl) FindByKey(ctx context.Context, key string) (*domain.PlatformSetting, error) {
	var setting domain.PlatformSetting
	if err := r.conn(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, notFound(err, domain.ErrSettingNotFound)
	}
	return &setting, nil
}

// Upsert writes the value keyed by setting.Key
func (r *SettingRepositoryImpl) Upsert(ctx context.Context, setting *domain.PlatformSetting) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_by", "updated_at"}),
	}).Create(setting).Error
}

// AdminLogRepositoryImpl implements domain.AdminLogRepository using GORM
type AdminLogRepositoryImpl struct {
	base
}

// NewAdminLogRepository creates a new admin action log repository
func NewAdminLogRepository(db *gorm.DB) domain.AdminLogRepository {
	return &AdminLogRepositoryImpl{base{db: db}}
}

func (r *AdminLogRepositoryImpl) Create(ctx context.Context, entry *domain.AdminActionLog) error {
	return r.conn(ctx).Create(entry).Error
}

func (r *AdminLogRepositoryImpl) List(ctx context.Context, filter domain.AdminLogFilter, page domain.Page) ([]domain.AdminActionLog, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.AdminID != 0 {
			db = db.Where("admin_id = ?", filter.AdminID)
		}
		if filter.Action != "" {
			db = db.Where("action = ?", filter.Action)
		}
		if filter.TargetType != "" {
			db = db.Where("target_type = ?", filter.TargetType)
		}
		return db
	}
	return findPage[domain.AdminActionLog](r.conn(ctx), scope, "created_at DESC, id DESC", page)
}

// ConsultationRepositoryImpl implements domain.ConsultationRepository using GORM
type ConsultationRepositoryImpl struct {
	base
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *gorm.DB) domain.ConsultationRepository {
	return &ConsultationRepositoryImpl{base{db: db}}
}

func (r *ConsultationRepositoryImpl) Create(ctx context.Context, c *domain.Consultation) error {
	return r.conn(ctx).Create(c).Error
}

func (r *ConsultationRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Consultation, error) {
	var c domain.Consultation
	if err := r.conn(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, domain.ErrConsultationNotFound)
	}
	return &c, nil
}

func (r *ConsultationRepositoryImpl) Update(ctx context.Context, c *domain.Consultation) error {
	return r.conn(ctx).Save(c).Error
}

func (r *ConsultationRepositoryImpl) List(ctx context.Context, status string, page domain.Page) ([]domain.Consultation, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}
	return findPage[domain.Consultation](r.conn(ctx), scope, "created_at DESC", page)
}
