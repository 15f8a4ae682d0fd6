package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asyncops/internal/model"

	"gorm.io/gorm"
)

type IncidentService struct{ db *gorm.DB }

func NewIncidentService(db *gorm.DB) *IncidentService { return &IncidentService{db: db} }

func (s *IncidentService) preload() *gorm.DB {
	return s.db.Preload("ReportedBy").Preload("AssignedTo")
}

func (s *IncidentService) checkAssignee(ctx context.Context, id *int) error {
	if id == nil || *id == 0 {
		return nil
	}
	n, err := existingUserIDs(ctx, s.db, []int{*id})
	if err != nil {
		return fmt.Errorf("check assignee: %w", err)
	}
	if n == 0 {
		return notFound("Assigned user")
	}
	return nil
}

func (s *IncidentService) Create(ctx context.Context, reporter *model.User, req model.IncidentCreate) (*model.Incident, error) {
	if err := s.checkAssignee(ctx, req.AssignedToID); err != nil {
		return nil, err
	}
	severity := req.Severity
	if severity == "" {
		severity = model.SeverityMedium
	}
	in := &model.Incident{
		ReportedByID: reporter.ID,
		AssignedToID: nonZero(req.AssignedToID),
		Title:        req.Title,
		Description:  req.Description,
		Severity:     severity,
		Status:       model.IncidentOpen,
	}
	if err := s.db.WithContext(ctx).Create(in).Error; err != nil {
		return nil, fmt.Errorf("insert incident: %w", err)
	}
	return s.Get(ctx, in.ID)
}

func (s *IncidentService) Get(ctx context.Context, id int) (*model.Incident, error) {
	var in model.Incident
	err := s.preload().WithContext(ctx).First(&in, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Incident")
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %d: %w", id, err)
	}
	return &in, nil
}

type IncidentFilter struct {
	Status       string
	Severity     string
	AssignedToID *int
	Archived     bool
	PageQuery
}

// List orders by severity rank, then newest first.
func (s *IncidentService) List(ctx context.Context, f IncidentFilter) ([]model.Incident, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Incident{}).Where("archived = ?", f.Archived)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedToID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}
	var items []model.Incident
	err := q.Preload("ReportedBy").Preload("AssignedTo").
		Order(severityRankDesc).Order("created_at DESC").Order("id DESC").
		Scopes(f.Paginate).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	return items, total, nil
}

func (s *IncidentService) update(ctx context.Context, id int, updates map[string]any) (*model.Incident, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Incident{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update incident %d: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

func (s *IncidentService) Update(ctx context.Context, id int, req model.IncidentPatch) (*model.Incident, error) {
	if err := s.checkAssignee(ctx, req.AssignedToID); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Severity != nil {
		updates["severity"] = *req.Severity
	}
	if req.AssignedToID != nil {
		updates["assigned_to_id"] = nonZero(req.AssignedToID)
	}
	return s.update(ctx, id, updates)
}

// SetStatus stamps resolved_at the first time an incident reaches resolved or
// closed and clears it when the incident is reopened.
func (s *IncidentService) SetStatus(ctx context.Context, id int, req model.IncidentStatusRequest) (*model.Incident, error) {
	in, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{"status": req.Status}
	if req.ResolutionNotes != nil && *req.ResolutionNotes != "" {
		updates["resolution_notes"] = *req.ResolutionNotes
	}
	terminal := req.Status == model.IncidentResolved || req.Status == model.IncidentClosed
	switch {
	case terminal && in.ResolvedAt == nil:
		updates["resolved_at"] = time.Now().UTC()
	case !terminal:
		updates["resolved_at"] = nil
	}
	return s.update(ctx, id, updates)
}

// Assign sets the assignee; a nil or zero id unassigns.
func (s *IncidentService) Assign(ctx context.Context, id int, assignee *int) (*model.Incident, error) {
	if err := s.checkAssignee(ctx, assignee); err != nil {
		return nil, err
	}
	return s.update(ctx, id, map[string]any{"assigned_to_id": nonZero(assignee)})
}

func (s *IncidentService) SetArchived(ctx context.Context, id int, archived bool) (*model.Incident, error) {
	return s.update(ctx, id, map[string]any{"archived": archived})
}

// Delete removes an archived incident permanently.
func (s *IncidentService) Delete(ctx context.Context, id int) error {
	in, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !in.Archived {
		return invalid("Can only delete archived incidents")
	}
	if err := s.db.WithContext(ctx).Delete(&model.Incident{}, id).Error; err != nil {
		return fmt.Errorf("delete incident %d: %w", id, err)
	}
	return nil
}

func nonZero(id *int) *int {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}
