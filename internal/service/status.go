package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asyncops/internal/model"

	"gorm.io/gorm"
)

type StatusService struct{ db *gorm.DB }

func NewStatusService(db *gorm.DB) *StatusService { return &StatusService{db: db} }

func (s *StatusService) Create(ctx context.Context, author *model.User, req model.StatusUpdateCreate) (*model.StatusUpdate, error) {
	su := &model.StatusUpdate{
		UserID:  author.ID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    model.Tags(req.Tags),
	}
	if err := s.db.WithContext(ctx).Create(su).Error; err != nil {
		return nil, fmt.Errorf("insert status update: %w", err)
	}
	return s.Get(ctx, su.ID)
}

func (s *StatusService) Get(ctx context.Context, id int) (*model.StatusUpdate, error) {
	var su model.StatusUpdate
	err := s.db.WithContext(ctx).Preload("User").First(&su, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Status update")
	}
	if err != nil {
		return nil, fmt.Errorf("get status update %d: %w", id, err)
	}
	return &su, nil
}

type StatusFilter struct {
	AuthorID  *int
	StartDate *time.Time
	EndDate   *time.Time
	PageQuery
}

func (s *StatusService) List(ctx context.Context, f StatusFilter) ([]model.StatusUpdate, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.StatusUpdate{})
	if f.AuthorID != nil {
		q = q.Where("user_id = ?", *f.AuthorID)
	}
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", f.EndDate.UTC())
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count status updates: %w", err)
	}
	var items []model.StatusUpdate
	err := q.Preload("User").Order("created_at DESC").Order("id DESC").Scopes(f.Paginate).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list status updates: %w", err)
	}
	return items, total, nil
}

func (s *StatusService) ownedBy(ctx context.Context, id int, u *model.User, verb string) (*model.StatusUpdate, error) {
	su, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if su.UserID != u.ID {
		return nil, forbidden("Not authorized to " + verb + " this status update")
	}
	return su, nil
}

func (s *StatusService) Update(ctx context.Context, id int, u *model.User, req model.StatusUpdatePatch) (*model.StatusUpdate, error) {
	if _, err := s.ownedBy(ctx, id, u, "update"); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Tags != nil {
		updates["tags"] = model.Tags(*req.Tags)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.StatusUpdate{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update status update %d: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

func (s *StatusService) Delete(ctx context.Context, id int, u *model.User) error {
	su, err := s.ownedBy(ctx, id, u, "delete")
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(su).Error; err != nil {
		return fmt.Errorf("delete status update %d: %w", id, err)
	}
	return nil
}
