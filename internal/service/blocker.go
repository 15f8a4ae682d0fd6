package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asyncops/internal/model"

	"gorm.io/gorm"
)

const blockerActiveFirst = "CASE status WHEN 'active' THEN 0 ELSE 1 END"

type BlockerService struct{ db *gorm.DB }

func NewBlockerService(db *gorm.DB) *BlockerService { return &BlockerService{db: db} }

func (s *BlockerService) checkRelated(ctx context.Context, statusID, incidentID *int) error {
	if id := nonZero(statusID); id != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.StatusUpdate{}).Where("id = ?", *id).Count(&n).Error; err != nil {
			return fmt.Errorf("check related status: %w", err)
		}
		if n == 0 {
			return notFound("Related status update")
		}
	}
	if id := nonZero(incidentID); id != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.Incident{}).Where("id = ?", *id).Count(&n).Error; err != nil {
			return fmt.Errorf("check related incident: %w", err)
		}
		if n == 0 {
			return notFound("Related incident")
		}
	}
	return nil
}

func (s *BlockerService) Create(ctx context.Context, reporter *model.User, req model.BlockerCreate) (*model.Blocker, error) {
	if err := s.checkRelated(ctx, req.RelatedStatusID, req.RelatedIncidentID); err != nil {
		return nil, err
	}
	b := &model.Blocker{
		ReportedByID:      reporter.ID,
		Description:       req.Description,
		Impact:            req.Impact,
		Status:            model.BlockerActive,
		RelatedStatusID:   nonZero(req.RelatedStatusID),
		RelatedIncidentID: nonZero(req.RelatedIncidentID),
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, fmt.Errorf("insert blocker: %w", err)
	}
	return s.Get(ctx, b.ID)
}

func (s *BlockerService) Get(ctx context.Context, id int) (*model.Blocker, error) {
	var b model.Blocker
	err := s.db.WithContext(ctx).Preload("ReportedBy").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Blocker")
	}
	if err != nil {
		return nil, fmt.Errorf("get blocker %d: %w", id, err)
	}
	return &b, nil
}

type BlockerFilter struct {
	Status   string
	Archived bool
	PageQuery
}

// List puts active blockers before resolved ones, newest first within each.
func (s *BlockerService) List(ctx context.Context, f BlockerFilter) ([]model.Blocker, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Blocker{}).Where("archived = ?", f.Archived)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count blockers: %w", err)
	}
	var items []model.Blocker
	err := q.Preload("ReportedBy").
		Order(blockerActiveFirst).Order("created_at DESC").Order("id DESC").
		Scopes(f.Paginate).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list blockers: %w", err)
	}
	return items, total, nil
}

func (s *BlockerService) update(ctx context.Context, id int, updates map[string]any) (*model.Blocker, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		// Scoped by id so preloaded relations never feed back into the update.
		if err := s.db.WithContext(ctx).Model(&model.Blocker{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update blocker %d: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

func (s *BlockerService) Update(ctx context.Context, id int, req model.BlockerPatch) (*model.Blocker, error) {
	if err := s.checkRelated(ctx, req.RelatedStatusID, req.RelatedIncidentID); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Impact != nil {
		updates["impact"] = *req.Impact
	}
	if req.RelatedStatusID != nil {
		updates["related_status_id"] = nonZero(req.RelatedStatusID)
	}
	if req.RelatedIncidentID != nil {
		updates["related_incident_id"] = nonZero(req.RelatedIncidentID)
	}
	return s.update(ctx, id, updates)
}

// Resolve marks the blocker resolved; resolved_at keeps its first value.
func (s *BlockerService) Resolve(ctx context.Context, id int, notes *string) (*model.Blocker, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{"status": model.BlockerResolved}
	if notes != nil && *notes != "" {
		updates["resolution_notes"] = *notes
	}
	if b.ResolvedAt == nil {
		updates["resolved_at"] = time.Now().UTC()
	}
	return s.update(ctx, id, updates)
}

func (s *BlockerService) SetArchived(ctx context.Context, id int, archived bool) (*model.Blocker, error) {
	return s.update(ctx, id, map[string]any{"archived": archived})
}

func (s *BlockerService) Delete(ctx context.Context, id int) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !b.Archived {
		return invalid("Can only delete archived blockers")
	}
	if err := s.db.WithContext(ctx).Delete(&model.Blocker{}, id).Error; err != nil {
		return fmt.Errorf("delete blocker %d: %w", id, err)
	}
	return nil
}
