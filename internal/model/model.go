package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	IncidentOpen       = "open"
	IncidentInProgress = "in_progress"
	IncidentResolved   = "resolved"
	IncidentClosed     = "closed"
)

const (
	BlockerActive   = "active"
	BlockerResolved = "resolved"
)

const (
	AuditCreated = "created"
	AuditUpdated = "updated"
	AuditDeleted = "deleted"
)

// ActiveIncidentStatuses are the incident statuses that count as "still happening".
var ActiveIncidentStatuses = []string{IncidentOpen, IncidentInProgress}

type User struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:255;not null" json:"full_name"`
	Role         string    `gorm:"size:20;not null;default:member" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

type StatusUpdate struct {
	ID        int                         `gorm:"primaryKey" json:"id"`
	UserID    int                         `gorm:"not null;index" json:"user_id"`
	Title     string                      `gorm:"size:200;not null" json:"title"`
	Content   string                      `gorm:"type:text;not null" json:"content"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
	User      *User                       `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type Incident struct {
	ID              int        `gorm:"primaryKey" json:"id"`
	ReportedByID    int        `gorm:"not null;index" json:"reported_by_id"`
	AssignedToID    *int       `gorm:"index" json:"assigned_to_id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Description     string     `gorm:"type:text;not null" json:"description"`
	Severity        string     `gorm:"size:20;not null;default:medium;index" json:"severity"`
	Status          string     `gorm:"size:20;not null;default:open;index" json:"status"`
	ResolutionNotes *string    `gorm:"type:text" json:"resolution_notes"`
	Archived        bool       `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ReportedBy      *User      `gorm:"foreignKey:ReportedByID" json:"reported_by,omitempty"`
	AssignedTo      *User      `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
}

type Blocker struct {
	ID                int        `gorm:"primaryKey" json:"id"`
	ReportedByID      int        `gorm:"not null;index" json:"reported_by_id"`
	Description       string     `gorm:"type:text;not null" json:"description"`
	Impact            string     `gorm:"type:text;not null" json:"impact"`
	Status            string     `gorm:"size:20;not null;default:active;index" json:"status"`
	ResolutionNotes   *string    `gorm:"type:text" json:"resolution_notes"`
	RelatedStatusID   *int       `gorm:"index" json:"related_status_id"`
	RelatedIncidentID *int       `gorm:"index" json:"related_incident_id"`
	Archived          bool       `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	ReportedBy        *User      `gorm:"foreignKey:ReportedByID" json:"reported_by,omitempty"`
}

type Decision struct {
	ID           int                         `gorm:"primaryKey" json:"id"`
	CreatedByID  int                         `gorm:"not null;index" json:"created_by_id"`
	Title        string                      `gorm:"size:200;not null" json:"title"`
	Description  string                      `gorm:"type:text;not null" json:"description"`
	Context      string                      `gorm:"type:text;not null" json:"context"`
	Outcome      string                      `gorm:"type:text;not null" json:"outcome"`
	DecisionDate datatypes.Date              `gorm:"not null;index" json:"decision_date"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt    time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	CreatedBy    *User                       `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Participants []DecisionParticipant       `gorm:"constraint:OnDelete:CASCADE" json:"participants"`
}

type DecisionParticipant struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	DecisionID int       `gorm:"not null;uniqueIndex:uq_decision_participant" json:"decision_id"`
	UserID     int       `gorm:"not null;uniqueIndex:uq_decision_participant" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// DecisionAuditLog keeps no FK to decisions so the "deleted" row outlives the decision.
type DecisionAuditLog struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	DecisionID  int       `gorm:"not null;index" json:"decision_id"`
	ChangedByID int       `gorm:"not null;index" json:"changed_by_id"`
	ChangeType  string    `gorm:"size:20;not null;index" json:"change_type"`
	FieldName   *string   `gorm:"size:100" json:"field_name"`
	OldValue    *string   `gorm:"type:text" json:"old_value"`
	NewValue    *string   `gorm:"type:text" json:"new_value"`
	ChangedAt   time.Time `gorm:"not null;index" json:"changed_at"`
	ChangedBy   *User     `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}

// DailySummary is the stored rollup for one calendar day. SummaryDate is the
// natural key; the unique index is what serializes concurrent first inserts.
type DailySummary struct {
	ID                 int                                `gorm:"primaryKey" json:"id"`
	SummaryDate        datatypes.Date                     `gorm:"not null;uniqueIndex" json:"summary_date"`
	Content            datatypes.JSONType[SummaryContent] `gorm:"not null" json:"content"`
	StatusUpdatesCount int                                `gorm:"not null;default:0" json:"status_updates_count"`
	IncidentsCount     int                                `gorm:"not null;default:0" json:"incidents_count"`
	BlockersCount      int                                `gorm:"not null;default:0" json:"blockers_count"`
	DecisionsCount     int                                `gorm:"not null;default:0" json:"decisions_count"`
	GeneratedAt        time.Time                          `gorm:"not null;index" json:"generated_at"`
	CreatedAt          time.Time                          `gorm:"not null" json:"created_at"`
}

// SummaryContent is the document embedded in DailySummary.Content. It is
// always replaced whole.
type SummaryContent struct {
	StatusUpdates   []SummaryStatusUpdate `json:"status_updates"`
	Incidents       []SummaryIncident     `json:"incidents"`
	Blockers        []SummaryBlocker      `json:"blockers"`
	RecentDecisions []SummaryDecision     `json:"recent_decisions"`
	Statistics      SummaryStatistics     `json:"statistics"`
}

type SummaryStatusUpdate struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type SummaryIncident struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
}

type SummaryBlocker struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type SummaryDecision struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	DecisionDate string `json:"decision_date"`
}

type SummaryStatistics struct {
	TotalStatusUpdates int `json:"total_status_updates"`
	CriticalIncidents  int `json:"critical_incidents"`
	ActiveBlockers     int `json:"active_blockers"`
	DecisionsLast7Days int `json:"decisions_last_7_days"`
}

func (User) TableName() string                { return "users" }
func (StatusUpdate) TableName() string        { return "status_updates" }
func (Incident) TableName() string            { return "incidents" }
func (Blocker) TableName() string             { return "blockers" }
func (Decision) TableName() string            { return "decisions" }
func (DecisionParticipant) TableName() string { return "decision_participants" }
func (DecisionAuditLog) TableName() string    { return "decision_audit_log" }
func (DailySummary) TableName() string        { return "daily_summaries" }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{}, &StatusUpdate{}, &Incident{}, &Blocker{},
		&Decision{}, &DecisionParticipant{}, &DecisionAuditLog{}, &DailySummary{},
	)
}
