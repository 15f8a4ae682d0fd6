package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar day containing t.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.UTC().Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}

func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(DateLayout)
}

// Tags stores nil as an empty JSON array.
func Tags(t []string) datatypes.JSONSlice[string] {
	if t == nil {
		t = []string{}
	}
	return datatypes.JSONSlice[string](t)
}

func (d Decision) MarshalJSON() ([]byte, error) {
	type alias Decision
	return json.Marshal(struct {
		alias
		DecisionDate string `json:"decision_date"`
	}{alias(d), FormatDate(d.DecisionDate)})
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type UserUpdateRequest struct {
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	FullName *string `json:"full_name" binding:"omitempty,min=1,max=255"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type StatusUpdateCreate struct {
	Title   string   `json:"title" binding:"required,max=200"`
	Content string   `json:"content" binding:"required,max=10000"`
	Tags    []string `json:"tags"`
}

type StatusUpdatePatch struct {
	Title   *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Content *string   `json:"content" binding:"omitempty,min=1,max=10000"`
	Tags    *[]string `json:"tags"`
}

type IncidentCreate struct {
	Title        string `json:"title" binding:"required,max=200"`
	Description  string `json:"description" binding:"required,max=5000"`
	Severity     string `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	AssignedToID *int   `json:"assigned_to_id"`
}

type IncidentPatch struct {
	Title        *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description  *string `json:"description" binding:"omitempty,min=1,max=5000"`
	Severity     *string `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	AssignedToID *int    `json:"assigned_to_id"`
}

type IncidentStatusRequest struct {
	Status          string  `json:"status" binding:"required,oneof=open in_progress resolved closed"`
	ResolutionNotes *string `json:"resolution_notes" binding:"omitempty,max=5000"`
}

// IncidentAssignRequest with a nil AssignedToID clears the assignee.
type IncidentAssignRequest struct {
	AssignedToID *int `json:"assigned_to_id"`
}

type BlockerCreate struct {
	Description       string `json:"description" binding:"required,max=2000"`
	Impact            string `json:"impact" binding:"required,max=1000"`
	RelatedStatusID   *int   `json:"related_status_id"`
	RelatedIncidentID *int   `json:"related_incident_id"`
}

type BlockerPatch struct {
	Description       *string `json:"description" binding:"omitempty,min=1,max=2000"`
	Impact            *string `json:"impact" binding:"omitempty,min=1,max=1000"`
	RelatedStatusID   *int    `json:"related_status_id"`
	RelatedIncidentID *int    `json:"related_incident_id"`
}

type BlockerResolveRequest struct {
	ResolutionNotes *string `json:"resolution_notes" binding:"omitempty,max=1000"`
}

type DecisionCreate struct {
	Title          string   `json:"title" binding:"required,max=200"`
	Description    string   `json:"description" binding:"required,max=5000"`
	Context        string   `json:"context" binding:"required,max=5000"`
	Outcome        string   `json:"outcome" binding:"required,max=5000"`
	DecisionDate   string   `json:"decision_date" binding:"required,datetime=2006-01-02"`
	Tags           []string `json:"tags"`
	ParticipantIDs []int    `json:"participant_ids"`
}

type DecisionPatch struct {
	Title          *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Description    *string   `json:"description" binding:"omitempty,min=1,max=5000"`
	Context        *string   `json:"context" binding:"omitempty,min=1,max=5000"`
	Outcome        *string   `json:"outcome" binding:"omitempty,min=1,max=5000"`
	DecisionDate   *string   `json:"decision_date" binding:"omitempty,datetime=2006-01-02"`
	Tags           *[]string `json:"tags"`
	ParticipantIDs *[]int    `json:"participant_ids"`
}

// SummaryListItem is the list projection of a DailySummary; it never carries content.
type SummaryListItem struct {
	ID                 int       `json:"id"`
	SummaryDate        string    `json:"summary_date"`
	StatusUpdatesCount int       `json:"status_updates_count"`
	IncidentsCount     int       `json:"incidents_count"`
	BlockersCount      int       `json:"blockers_count"`
	DecisionsCount     int       `json:"decisions_count"`
	GeneratedAt        time.Time `json:"generated_at"`
}

type SummaryResponse struct {
	ID                 int            `json:"id"`
	SummaryDate        string         `json:"summary_date"`
	Content            SummaryContent `json:"content"`
	StatusUpdatesCount int            `json:"status_updates_count"`
	IncidentsCount     int            `json:"incidents_count"`
	BlockersCount      int            `json:"blockers_count"`
	DecisionsCount     int            `json:"decisions_count"`
	GeneratedAt        time.Time      `json:"generated_at"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (s *DailySummary) ListItem() SummaryListItem {
	return SummaryListItem{
		ID:                 s.ID,
		SummaryDate:        FormatDate(s.SummaryDate),
		StatusUpdatesCount: s.StatusUpdatesCount,
		IncidentsCount:     s.IncidentsCount,
		BlockersCount:      s.BlockersCount,
		DecisionsCount:     s.DecisionsCount,
		GeneratedAt:        s.GeneratedAt,
	}
}

func (s *DailySummary) Response() SummaryResponse {
	return SummaryResponse{
		ID:                 s.ID,
		SummaryDate:        FormatDate(s.SummaryDate),
		Content:            s.Content.Data(),
		StatusUpdatesCount: s.StatusUpdatesCount,
		IncidentsCount:     s.IncidentsCount,
		BlockersCount:      s.BlockersCount,
		DecisionsCount:     s.DecisionsCount,
		GeneratedAt:        s.GeneratedAt,
		CreatedAt:          s.CreatedAt,
	}
}
