package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asyncops/internal/model"

	"gorm.io/gorm"
)

type UserService struct{ db *gorm.DB }

func NewUserService(db *gorm.DB) *UserService { return &UserService{db: db} }

func (s *UserService) Get(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, u *model.User, req model.UserUpdateRequest) (*model.User, error) {
	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != u.Email {
			var n int64
			if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if n > 0 {
				return nil, conflict("Email already registered")
			}
			updates["email"] = email
		}
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, conflict("Email already registered")
			}
			return nil, fmt.Errorf("update user %d: %w", u.ID, err)
		}
	}
	return s.Get(ctx, u.ID)
}

// Promote makes the user an admin. It reports false when the user already was one.
func (s *UserService) Promote(ctx context.Context, email string) (*model.User, bool, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if u.IsAdmin() {
		return u, false, nil
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", model.RoleAdmin).Error; err != nil {
		return nil, false, fmt.Errorf("promote user %d: %w", u.ID, err)
	}
	u.Role = model.RoleAdmin
	return u, true, nil
}

// ForAssignment lists active users by name for assignee pickers.
func (s *UserService) ForAssignment(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("full_name").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type UserFilter struct {
	Role   string
	Search string
	PageQuery
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	var users []model.User
	if err := q.Order("id").Scopes(f.Paginate).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// existingUserIDs returns how many of ids exist in users.
func existingUserIDs(ctx context.Context, db *gorm.DB, ids []int) (int64, error) {
	var n int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := db.WithContext(ctx).Model(&model.User{}).Where("id IN ?", ids).Count(&n).Error
	return n, err
}
