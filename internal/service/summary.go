package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asyncops/internal/logger"
	"asyncops/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	statusUpdateWindow = 24 * time.Hour
	decisionWindowDays = 7

	unknownAuthor = "Unknown"

	// maxEnsureAttempts bounds re-reads after losing an insert race on summary_date.
	maxEnsureAttempts = 3
)

// severityRankDesc orders incidents critical > high > medium > low.
const severityRankDesc = "CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC"

// EntitySource is the read side of the four entity stores the aggregator consumes.
type EntitySource interface {
	StatusUpdatesSince(ctx context.Context, since time.Time) ([]model.StatusUpdate, error)
	ActiveIncidents(ctx context.Context) ([]model.Incident, error)
	CountActiveIncidents(ctx context.Context, severity string) (int64, error)
	ActiveBlockers(ctx context.Context) ([]model.Blocker, error)
	DecisionsSince(ctx context.Context, since datatypes.Date) ([]model.Decision, error)
}

type gormSource struct{ db *gorm.DB }

func NewEntitySource(db *gorm.DB) EntitySource { return &gormSource{db: db} }

func (g *gormSource) StatusUpdatesSince(ctx context.Context, since time.Time) ([]model.StatusUpdate, error) {
	var out []model.StatusUpdate
	err := g.db.WithContext(ctx).
		Preload("User").
		Where("created_at >= ?", since).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query status updates: %w", err)
	}
	return out, nil
}

func (g *gormSource) activeIncidents(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).Model(&model.Incident{}).
		Where("archived = ? AND status IN ?", false, model.ActiveIncidentStatuses)
}

func (g *gormSource) ActiveIncidents(ctx context.Context) ([]model.Incident, error) {
	var out []model.Incident
	err := g.activeIncidents(ctx).
		Order(severityRankDesc).Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	return out, nil
}

func (g *gormSource) CountActiveIncidents(ctx context.Context, severity string) (int64, error) {
	var n int64
	if err := g.activeIncidents(ctx).Where("severity = ?", severity).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return n, nil
}

func (g *gormSource) ActiveBlockers(ctx context.Context) ([]model.Blocker, error) {
	var out []model.Blocker
	err := g.db.WithContext(ctx).
		Where("archived = ? AND status = ?", false, model.BlockerActive).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query blockers: %w", err)
	}
	return out, nil
}

func (g *gormSource) DecisionsSince(ctx context.Context, since datatypes.Date) ([]model.Decision, error) {
	var out []model.Decision
	err := g.db.WithContext(ctx).
		Where("decision_date >= ?", since).
		Order("decision_date DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	return out, nil
}

// Aggregate is one computed snapshot: the content document plus the counters
// stored next to it.
type Aggregate struct {
	Content            model.SummaryContent
	StatusUpdatesCount int
	IncidentsCount     int
	BlockersCount      int
	DecisionsCount     int
}

type Aggregator struct{ src EntitySource }

func NewAggregator(src EntitySource) *Aggregator { return &Aggregator{src: src} }

// Build reads the entity stores relative to now. It never writes.
func (a *Aggregator) Build(ctx context.Context, now time.Time) (*Aggregate, error) {
	now = now.UTC()
	since := now.Add(-statusUpdateWindow)
	decisionsSince := datatypes.Date(time.Time(model.DateOf(now)).AddDate(0, 0, -decisionWindowDays))

	updates, err := a.src.StatusUpdatesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	incidents, err := a.src.ActiveIncidents(ctx)
	if err != nil {
		return nil, err
	}
	blockers, err := a.src.ActiveBlockers(ctx)
	if err != nil {
		return nil, err
	}
	decisions, err := a.src.DecisionsSince(ctx, decisionsSince)
	if err != nil {
		return nil, err
	}
	critical, err := a.src.CountActiveIncidents(ctx, model.SeverityCritical)
	if err != nil {
		return nil, err
	}

	content := model.SummaryContent{
		StatusUpdates:   make([]model.SummaryStatusUpdate, 0, len(updates)),
		Incidents:       make([]model.SummaryIncident, 0, len(incidents)),
		Blockers:        make([]model.SummaryBlocker, 0, len(blockers)),
		RecentDecisions: make([]model.SummaryDecision, 0, len(decisions)),
	}
	for _, u := range updates {
		content.StatusUpdates = append(content.StatusUpdates, model.SummaryStatusUpdate{
			ID: u.ID, Title: u.Title, Author: authorName(u.User), CreatedAt: u.CreatedAt.UTC(),
		})
	}
	for _, i := range incidents {
		content.Incidents = append(content.Incidents, model.SummaryIncident{
			ID: i.ID, Title: i.Title, Severity: i.Severity, Status: i.Status,
		})
	}
	for _, b := range blockers {
		content.Blockers = append(content.Blockers, model.SummaryBlocker{
			ID: b.ID, Description: b.Description, Status: b.Status,
		})
	}
	for _, d := range decisions {
		content.RecentDecisions = append(content.RecentDecisions, model.SummaryDecision{
			ID: d.ID, Title: d.Title, DecisionDate: model.FormatDate(d.DecisionDate),
		})
	}
	content.Statistics = model.SummaryStatistics{
		TotalStatusUpdates: len(updates),
		CriticalIncidents:  int(critical),
		ActiveBlockers:     len(blockers),
		DecisionsLast7Days: len(decisions),
	}

	logger.Debug("summary.aggregate",
		"now", now, "since", since, "decisions_since", model.FormatDate(decisionsSince),
		"status_updates", len(updates), "incidents", len(incidents),
		"blockers", len(blockers), "decisions", len(decisions), "critical", critical)

	return &Aggregate{
		Content:            content,
		StatusUpdatesCount: len(updates),
		IncidentsCount:     len(incidents),
		BlockersCount:      len(blockers),
		DecisionsCount:     len(decisions),
	}, nil
}

func authorName(u *model.User) string {
	if u == nil {
		return unknownAuthor
	}
	return u.FullName
}

type SummaryService struct {
	db  *gorm.DB
	agg *Aggregator
	now func() time.Time

	// beforeWrite runs between aggregation and the write transaction.
	beforeWrite func()
}

type SummaryOption func(*SummaryService)

func WithClock(now func() time.Time) SummaryOption {
	return func(s *SummaryService) { s.now = now }
}

func WithEntitySource(src EntitySource) SummaryOption {
	return func(s *SummaryService) { s.agg = NewAggregator(src) }
}

func NewSummaryService(db *gorm.DB, opts ...SummaryOption) *SummaryService {
	s := &SummaryService{db: db, agg: NewAggregator(NewEntitySource(db)), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// clock is UTC at millisecond precision, the finest MySQL DATETIME(3) keeps.
func (s *SummaryService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Ensure returns the summary for day (today in UTC when day is zero). A missing
// row is computed and inserted. An existing row is returned untouched unless
// force is set, in which case its content and counters are recomputed and
// overwritten in place.
func (s *SummaryService) Ensure(ctx context.Context, day time.Time, force bool) (*model.DailySummary, error) {
	if day.IsZero() {
		day = s.clock()
	}
	date := model.DateOf(day)

	for attempt := 1; ; attempt++ {
		summary, err := s.ensureOnce(ctx, date, force)
		if err == nil {
			return summary, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < maxEnsureAttempts {
			logger.Warn("summary.insert_conflict", "date", model.FormatDate(date), "attempt", attempt)
			continue
		}
		return nil, err
	}
}

func (s *SummaryService) ensureOnce(ctx context.Context, date datatypes.Date, force bool) (*model.DailySummary, error) {
	existing, err := s.findByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		logger.Info("summary.exists", "id", existing.ID, "date", model.FormatDate(date))
		return existing, nil
	}

	now := s.clock()
	agg, err := s.agg.Build(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("aggregate summary: %w", err)
	}
	if s.beforeWrite != nil {
		s.beforeWrite()
	}

	if existing == nil {
		row := &model.DailySummary{
			SummaryDate:        date,
			Content:            datatypes.NewJSONType(agg.Content),
			StatusUpdatesCount: agg.StatusUpdatesCount,
			IncidentsCount:     agg.IncidentsCount,
			BlockersCount:      agg.BlockersCount,
			DecisionsCount:     agg.DecisionsCount,
			GeneratedAt:        now,
			CreatedAt:          now,
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(row).Error
		})
		if err != nil {
			return nil, fmt.Errorf("insert summary: %w", err)
		}
		logger.Info("summary.created", "id", row.ID, "date", model.FormatDate(date),
			"status_updates", row.StatusUpdatesCount, "incidents", row.IncidentsCount,
			"blockers", row.BlockersCount, "decisions", row.DecisionsCount)
		return row, nil
	}

	generatedAt := now
	if !generatedAt.After(existing.GeneratedAt) {
		generatedAt = existing.GeneratedAt.Add(time.Millisecond)
	}
	var updated model.DailySummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DailySummary{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"content":              datatypes.NewJSONType(agg.Content),
			"status_updates_count": agg.StatusUpdatesCount,
			"incidents_count":      agg.IncidentsCount,
			"blockers_count":       agg.BlockersCount,
			"decisions_count":      agg.DecisionsCount,
			"generated_at":         generatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&updated, existing.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update summary %d: %w", existing.ID, err)
	}
	logger.Info("summary.regenerated", "id", updated.ID, "date", model.FormatDate(date),
		"status_updates", updated.StatusUpdatesCount, "incidents", updated.IncidentsCount,
		"blockers", updated.BlockersCount, "decisions", updated.DecisionsCount)
	return &updated, nil
}

func (s *SummaryService) findByDate(ctx context.Context, date datatypes.Date) (*model.DailySummary, error) {
	var row model.DailySummary
	err := s.db.WithContext(ctx).Where("summary_date = ?", date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return &row, nil
}

func (s *SummaryService) Get(ctx context.Context, id int) (*model.DailySummary, error) {
	var row model.DailySummary
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Daily summary")
	}
	if err != nil {
		return nil, fmt.Errorf("get summary %d: %w", id, err)
	}
	return &row, nil
}

func (s *SummaryService) GetByDate(ctx context.Context, day time.Time) (*model.DailySummary, error) {
	row, err := s.findByDate(ctx, model.DateOf(day))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound("Daily summary")
	}
	return row, nil
}

type SummaryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	PageQuery
}

// List returns list projections (content is not loaded) newest date first.
func (s *SummaryService) List(ctx context.Context, f SummaryFilter) ([]model.DailySummary, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.DailySummary{})
	if f.StartDate != nil {
		q = q.Where("summary_date >= ?", model.DateOf(*f.StartDate))
	}
	if f.EndDate != nil {
		q = q.Where("summary_date <= ?", model.DateOf(*f.EndDate))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count summaries: %w", err)
	}
	var rows []model.DailySummary
	err := q.Select("id", "summary_date", "status_updates_count", "incidents_count",
		"blockers_count", "decisions_count", "generated_at", "created_at").
		Order("summary_date DESC").
		Scopes(f.Paginate).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list summaries: %w", err)
	}
	return rows, total, nil
}
