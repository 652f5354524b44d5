package recon

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReconMonthLayout renders run months like "Jan'25".
const ReconMonthLayout = "Jan'06"

// Upload is one panel file upload attempt; a successful one starts a generation.
type Upload struct {
	DocID        string         `gorm:"column:doc_id;primaryKey" json:"doc_id"`
	PanelID      uuid.UUID      `gorm:"column:panel_id;type:uuid;not null;index" json:"panel_id"`
	PanelName    string         `gorm:"column:panel_name;not null;index" json:"panel_name"`
	DocName      string         `gorm:"column:doc_name" json:"doc_name"`
	UploadedBy   string         `gorm:"column:uploaded_by" json:"uploaded_by"`
	TotalRecords int            `gorm:"column:total_records;not null;default:0" json:"total_records"`
	Status       UploadStatus   `gorm:"column:status;not null;index" json:"status"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	FileHash     string         `gorm:"column:file_hash;index" json:"file_hash,omitempty"`
	Headers      datatypes.JSON `gorm:"column:headers" json:"headers,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"timestamp"`
}

func (Upload) TableName() string { return "panel_upload" }

func (u *Upload) SetHeaders(h []string) { u.Headers = mustJSON(h) }

// ReconciliationRun tracks one generation through categorization and HR reconciliation.
type ReconciliationRun struct {
	ReconID     string         `gorm:"column:recon_id;primaryKey" json:"recon_id"`
	PanelID     uuid.UUID      `gorm:"column:panel_id;type:uuid;not null;index" json:"panel_id"`
	PanelName   string         `gorm:"column:panel_name;not null;index" json:"panel_name"`
	UploadID    string         `gorm:"column:upload_id;not null;uniqueIndex" json:"upload_id"`
	SOTType     string         `gorm:"column:sot_type" json:"sot_type"`
	ReconMonth  string         `gorm:"column:recon_month" json:"recon_month"`
	Status      RunStatus      `gorm:"column:status;not null;index" json:"status"`
	StartDate   *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	PerformedBy string         `gorm:"column:performed_by" json:"performed_by,omitempty"`
	Summary     datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (ReconciliationRun) TableName() string { return "recon_run" }

// NewReconID returns an id of the form RCN_1a2b3c4d.
func NewReconID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "RCN_" + uuid.NewString()[:8]
	}
	return "RCN_" + hex.EncodeToString(b[:])
}

// RecategorizationRun records one override file applied to a completed run.
type RecategorizationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReconID     string         `gorm:"column:recon_id;not null;index" json:"recon_id"`
	PanelID     uuid.UUID      `gorm:"column:panel_id;type:uuid;not null;index" json:"panel_id"`
	PanelName   string         `gorm:"column:panel_name;not null" json:"panel_name"`
	DocName     string         `gorm:"column:doc_name" json:"doc_name"`
	FileHash    string         `gorm:"column:file_hash" json:"file_hash,omitempty"`
	PerformedBy string         `gorm:"column:performed_by" json:"performed_by"`
	MatchColumn string         `gorm:"column:match_column" json:"match_column"`
	TypeColumn  string         `gorm:"column:type_column" json:"type_column"`
	PanelField  string         `gorm:"column:panel_field" json:"panel_field"`
	Summary     datatypes.JSON `gorm:"column:summary" json:"summary"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (RecategorizationRun) TableName() string { return "recategorization_run" }

func (r *RecategorizationRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AuditEvent is an append-only record of a mutating action.
type AuditEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Action    string         `gorm:"column:action;not null;index" json:"action"`
	Actor     string         `gorm:"column:actor;index" json:"user_name"`
	Status    string         `gorm:"column:status;not null;index" json:"status"`
	Details   datatypes.JSON `gorm:"column:details" json:"details"`
	IPAddress string         `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent string         `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"timestamp"`
}

func (AuditEvent) TableName() string { return "audit_event" }

func (a *AuditEvent) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// EncodeSummary marshals any summary value into a JSON column.
func EncodeSummary(v any) datatypes.JSON { return mustJSON(v) }

// DecodeSummary unmarshals a JSON column into a generic map; empty columns yield nil.
func DecodeSummary(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
