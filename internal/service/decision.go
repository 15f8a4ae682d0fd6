package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"asyncops/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DecisionService struct{ db *gorm.DB }

func NewDecisionService(db *gorm.DB) *DecisionService { return &DecisionService{db: db} }

func (s *DecisionService) checkParticipants(ctx context.Context, ids []int) ([]int, error) {
	ids = uniqueIDs(ids)
	n, err := existingUserIDs(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("check participants: %w", err)
	}
	if int(n) != len(ids) {
		return nil, notFound("One or more participant users")
	}
	return ids, nil
}

func uniqueIDs(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func audit(tx *gorm.DB, decisionID, by int, change string, field, oldV, newV *string) error {
	return tx.Create(&model.DecisionAuditLog{
		DecisionID:  decisionID,
		ChangedByID: by,
		ChangeType:  change,
		FieldName:   field,
		OldValue:    oldV,
		NewValue:    newV,
		ChangedAt:   time.Now().UTC(),
	}).Error
}

func (s *DecisionService) Create(ctx context.Context, creator *model.User, req model.DecisionCreate) (*model.Decision, error) {
	date, err := model.ParseDate(req.DecisionDate)
	if err != nil {
		return nil, invalid("decision_date must be YYYY-MM-DD")
	}
	ids, err := s.checkParticipants(ctx, req.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	d := &model.Decision{
		CreatedByID:  creator.ID,
		Title:        req.Title,
		Description:  req.Description,
		Context:      req.Context,
		Outcome:      req.Outcome,
		DecisionDate: date,
		Tags:         model.Tags(req.Tags),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(d).Error; err != nil {
			return err
		}
		if err := replaceParticipants(tx, d.ID, ids); err != nil {
			return err
		}
		return audit(tx, d.ID, creator.ID, model.AuditCreated, nil, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	return s.Get(ctx, d.ID)
}

func replaceParticipants(tx *gorm.DB, decisionID int, ids []int) error {
	if err := tx.Where("decision_id = ?", decisionID).Delete(&model.DecisionParticipant{}).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.DecisionParticipant, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.DecisionParticipant{DecisionID: decisionID, UserID: id})
	}
	return tx.Create(&rows).Error
}

func (s *DecisionService) Get(ctx context.Context, id int) (*model.Decision, error) {
	var d model.Decision
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").Preload("Participants.User").
		First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Decision")
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %d: %w", id, err)
	}
	return &d, nil
}

type DecisionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	ParticipantID *int
	Tag           string
	Search        string
	PageQuery
}

func (s *DecisionService) List(ctx context.Context, f DecisionFilter) ([]model.Decision, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Decision{})
	if f.StartDate != nil {
		q = q.Where("decision_date >= ?", model.DateOf(*f.StartDate))
	}
	if f.EndDate != nil {
		q = q.Where("decision_date <= ?", model.DateOf(*f.EndDate))
	}
	if f.ParticipantID != nil {
		q = q.Where("id IN (?)", s.db.Model(&model.DecisionParticipant{}).
			Select("decision_id").Where("user_id = ?", *f.ParticipantID))
	}
	if f.Tag != "" {
		q = q.Where(datatypes.JSONArrayQuery("tags").Contains(f.Tag))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count decisions: %w", err)
	}
	var items []model.Decision
	err := q.Preload("CreatedBy").Preload("Participants.User").
		Order("decision_date DESC").Order("id DESC").
		Scopes(f.Paginate).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list decisions: %w", err)
	}
	return items, total, nil
}

func (s *DecisionService) editable(ctx context.Context, id int, u *model.User, verb string) (*model.Decision, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.CreatedByID != u.ID && !u.IsAdmin() {
		return nil, forbidden("Only the decision creator or admin can " + verb + " decisions")
	}
	return d, nil
}

type fieldChange struct {
	column   string
	value    any
	old, new string
}

// Update writes one audit row per field whose value actually changed, plus one
// for the participant set when it is supplied.
func (s *DecisionService) Update(ctx context.Context, id int, u *model.User, req model.DecisionPatch) (*model.Decision, error) {
	d, err := s.editable(ctx, id, u, "update")
	if err != nil {
		return nil, err
	}
	var ids []int
	if req.ParticipantIDs != nil {
		if ids, err = s.checkParticipants(ctx, *req.ParticipantIDs); err != nil {
			return nil, err
		}
	}

	var changes []fieldChange
	text := func(column string, next *string, cur string) {
		if next != nil && *next != cur {
			changes = append(changes, fieldChange{column, *next, cur, *next})
		}
	}
	text("title", req.Title, d.Title)
	text("description", req.Description, d.Description)
	text("context", req.Context, d.Context)
	text("outcome", req.Outcome, d.Outcome)
	if req.DecisionDate != nil {
		date, err := model.ParseDate(*req.DecisionDate)
		if err != nil {
			return nil, invalid("decision_date must be YYYY-MM-DD")
		}
		if cur := model.FormatDate(d.DecisionDate); cur != *req.DecisionDate {
			changes = append(changes, fieldChange{"decision_date", date, cur, *req.DecisionDate})
		}
	}
	if req.Tags != nil {
		next := model.Tags(*req.Tags)
		if !slices.Equal([]string(next), []string(d.Tags)) {
			changes = append(changes, fieldChange{"tags", next, jsonText(d.Tags), jsonText(next)})
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		for _, c := range changes {
			updates[c.column] = c.value
			field, oldV, newV := c.column, c.old, c.new
			if err := audit(tx, d.ID, u.ID, model.AuditUpdated, &field, &oldV, &newV); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&model.Decision{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.ParticipantIDs == nil {
			return nil
		}
		if err := replaceParticipants(tx, d.ID, ids); err != nil {
			return err
		}
		field := "participants"
		oldV, newV := jsonText(participantIDs(d)), jsonText(ids)
		return audit(tx, d.ID, u.ID, model.AuditUpdated, &field, &oldV, &newV)
	})
	if err != nil {
		return nil, fmt.Errorf("update decision %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete records the deletion in the audit log before the decision row goes;
// the audit rows are kept.
func (s *DecisionService) Delete(ctx context.Context, id int, u *model.User) error {
	d, err := s.editable(ctx, id, u, "delete")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := audit(tx, d.ID, u.ID, model.AuditDeleted, nil, nil, nil); err != nil {
			return err
		}
		if err := tx.Where("decision_id = ?", d.ID).Delete(&model.DecisionParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Decision{}, d.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete decision %d: %w", id, err)
	}
	return nil
}

func (s *DecisionService) Audit(ctx context.Context, id int) ([]model.DecisionAuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var entries []model.DecisionAuditLog
	err := s.db.WithContext(ctx).Preload("ChangedBy").
		Where("decision_id = ?", id).
		Order("changed_at DESC").Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit for decision %d: %w", id, err)
	}
	return entries, nil
}

func participantIDs(d *model.Decision) []int {
	ids := make([]int, 0, len(d.Participants))
	for _, p := range d.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func jsonText(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
