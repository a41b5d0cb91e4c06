// Package gormstore persists complaints in PostgreSQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ store.Repository     = (*Store)(nil)
	_ store.StaffDirectory = (*Store)(nil)
)

// saveColumns are the complaint columns a lifecycle operation may change.
// Identity, citizen and content columns are written once by Insert.
var saveColumns = []string{
	"status",
	"priority",
	"assigned_to",
	"assigned_at",
	"reassigned_at",
	"work_started_at",
	"resolved_at",
	"resolved_by",
	"closed_at",
	"total_time_spent",
	"version",
	"updated_at",
}

type Store struct {
	db *gorm.DB
}

// New expects db to be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var highest int64
	err := s.db.WithContext(ctx).
		Unscoped().
		Model(&models.Complaint{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&highest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max complaint sequence: %w", err)
	}
	return highest, nil
}

func (s *Store) Insert(ctx context.Context, c *models.Complaint) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if c.Version == 0 {
		c.Version = 1
	}
	if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
		tx.Rollback()
		return translate("failed to insert complaint "+c.ComplaintID, err)
	}
	if len(c.Timeline) > 0 {
		if err := tx.Create(&c.Timeline).Error; err != nil {
			tx.Rollback()
			return translate("failed to insert timeline for "+c.ComplaintID, err)
		}
	}
	if len(c.ProgressUpdates) > 0 {
		if err := tx.Create(&c.ProgressUpdates).Error; err != nil {
			tx.Rollback()
			return translate("failed to insert progress for "+c.ComplaintID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return translate("failed to commit complaint "+c.ComplaintID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, complaintID string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.withChildren(s.db.WithContext(ctx)).
		Where("complaint_id = ?", complaintID).
		First(&c).Error
	if err != nil {
		return nil, translate("failed to load complaint "+complaintID, err)
	}
	return &c, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) (store.Page, error) {
	f = f.Normalize()
	query := s.db.WithContext(ctx).Model(&models.Complaint{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.CitizenEmail != "" {
		query = query.Where("citizen_email = ?", f.CitizenEmail)
	}
	if f.TechnicianID != "" {
		query = query.Where(datatypes.JSONQuery("assigned_to").Equals(f.TechnicianID, "id"))
	}

	var page store.Page
	if err := query.Count(&page.Total).Error; err != nil {
		return store.Page{}, fmt.Errorf("failed to count complaints: %w", err)
	}

	err := s.withChildren(query).
		Order(clause.OrderByColumn{Column: clause.Column{Name: f.SortColumn()}, Desc: f.Desc}).
		Order("seq ASC").
		Offset(f.Skip).
		Limit(f.Limit).
		Find(&page.Complaints).Error
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to list complaints: %w", err)
	}
	return page, nil
}

func (s *Store) All(ctx context.Context) ([]models.Complaint, error) {
	var complaints []models.Complaint
	if err := s.db.WithContext(ctx).Find(&complaints).Error; err != nil {
		return nil, fmt.Errorf("failed to scan complaints: %w", err)
	}
	return complaints, nil
}

func (s *Store) Save(ctx context.Context, c *models.Complaint, expectedVersion int, entries []models.TimelineEntry, updates []models.ProgressUpdate) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin save transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	c.Version = expectedVersion + 1
	res := tx.Model(&models.Complaint{}).
		Where("complaint_id = ? AND version = ?", c.ComplaintID, expectedVersion).
		Select(saveColumns).
		Updates(c)
	if res.Error != nil {
		tx.Rollback()
		c.Version = expectedVersion
		return translate("failed to update complaint "+c.ComplaintID, res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		c.Version = expectedVersion
		return s.missingOrConflict(ctx, c.ComplaintID)
	}

	if len(entries) > 0 {
		if err := tx.Create(&entries).Error; err != nil {
			tx.Rollback()
			c.Version = expectedVersion
			return conflictOnDuplicate("failed to append timeline for "+c.ComplaintID, err)
		}
	}
	if len(updates) > 0 {
		if err := tx.Create(&updates).Error; err != nil {
			tx.Rollback()
			c.Version = expectedVersion
			return conflictOnDuplicate("failed to append progress for "+c.ComplaintID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.Version = expectedVersion
		return fmt.Errorf("failed to commit complaint %s: %w", c.ComplaintID, err)
	}
	return nil
}

// Delete soft-deletes the complaint; timeline and progress rows are kept.
func (s *Store) Delete(ctx context.Context, complaintID string) error {
	res := s.db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Delete(&models.Complaint{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete complaint %s: %w", complaintID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("complaint %s: %w", complaintID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) FindTechnician(ctx context.Context, staffID string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("staff_id = ? AND role = ? AND active = ?", staffID, models.RoleTechnician, true).
		First(&u).Error
	if err != nil {
		return nil, translate("failed to load technician "+staffID, err)
	}
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? AND active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&u).Error
	if err != nil {
		return nil, translate("failed to load staff member", err)
	}
	return &u, nil
}

func (s *Store) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("ProgressUpdates", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (s *Store) missingOrConflict(ctx context.Context, complaintID string) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("complaint_id = ?", complaintID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check complaint %s: %w", complaintID, err)
	}
	if count == 0 {
		return fmt.Errorf("complaint %s: %w", complaintID, store.ErrNotFound)
	}
	return fmt.Errorf("complaint %s: %w", complaintID, store.ErrVersionConflict)
}

// translate maps gorm sentinels onto the store contract.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, store.ErrDuplicateID)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// conflictOnDuplicate treats a clash on (complaint_id, seq) as a lost race.
func conflictOnDuplicate(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, store.ErrVersionConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
