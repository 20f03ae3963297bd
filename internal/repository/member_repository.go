package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"family-tasks/internal/model"
)

// MemberRepository handles CRUD for family members.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// UpsertFromTelegram finds or creates a member based on TelegramID and
// refreshes the username.
func (r *MemberRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, username string) (*model.Member, error) {
	var member model.Member
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&member).Error
	switch {
	case err == nil:
		if member.Username != username {
			if err := db.Model(&member).Update("username", username).Error; err != nil {
				return nil, fmt.Errorf("update member: %w", err)
			}
		}
		return &member, nil
	case err == gorm.ErrRecordNotFound:
		member = model.Member{TelegramID: telegramID, Username: username}
		if err := db.Create(&member).Error; err != nil {
			return nil, fmt.Errorf("create member: %w", err)
		}
		return &member, nil
	default:
		return nil, fmt.Errorf("find member: %w", err)
	}
}

func (r *MemberRepository) FindByID(ctx context.Context, memberID uint) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, memberID).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) SetRole(ctx context.Context, memberID uint, role model.Role) error {
	if err := r.db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", memberID).
		Update("role", role).Error; err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (r *MemberRepository) SetFamilyCode(ctx context.Context, memberID uint, code string) error {
	if err := r.db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", memberID).
		Update("family_code", code).Error; err != nil {
		return fmt.Errorf("set family code: %w", err)
	}
	return nil
}

// ListByFamily returns every member sharing the given code (at most two).
func (r *MemberRepository) ListByFamily(ctx context.Context, code string) ([]model.Member, error) {
	var members []model.Member
	if err := r.db.WithContext(ctx).Where("family_code = ?", code).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// FindPartner returns the other member of the family, or nil when the
// member has no partner yet.
func (r *MemberRepository) FindPartner(ctx context.Context, member *model.Member) (*model.Member, error) {
	if !member.InFamily() {
		return nil, nil
	}
	var partner model.Member
	err := r.db.WithContext(ctx).
		Where("family_code = ? AND id <> ?", *member.FamilyCode, member.ID).
		First(&partner).Error
	switch {
	case err == nil:
		return &partner, nil
	case err == gorm.ErrRecordNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("find partner: %w", err)
	}
}

// ListJoined returns every member who belongs to a family.
func (r *MemberRepository) ListJoined(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	if err := r.db.WithContext(ctx).Where("family_code IS NOT NULL").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Delete removes a member together with all tasks they own.
func (r *MemberRepository) Delete(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []model.Task
		if err := tx.Where("owner_id = ?", member.ID).Find(&tasks).Error; err != nil {
			return fmt.Errorf("list owned tasks: %w", err)
		}
		for _, task := range tasks {
			if err := tx.Where("task_id = ?", task.ID).Delete(&model.Subtask{}).Error; err != nil {
				return fmt.Errorf("delete subtasks: %w", err)
			}
		}
		if err := tx.Where("owner_id = ?", member.ID).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Delete(member).Error; err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return nil
	})
}
