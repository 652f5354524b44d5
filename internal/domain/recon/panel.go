package recon

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Panel is a named dataset of users plus its column-to-SOT mapping.
type Panel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	NameKey         string         `gorm:"column:name_key;not null;uniqueIndex:idx_panel_name_key,where:deleted_at IS NULL" json:"-"`
	KeyMapping      datatypes.JSON `gorm:"column:key_mapping" json:"key_mapping"`
	PanelHeaders    datatypes.JSON `gorm:"column:panel_headers" json:"panel_headers"`
	CurrentUploadID *string        `gorm:"column:current_upload_id" json:"current_upload_id,omitempty"`
	CreatedBy       string         `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Panel) TableName() string { return "panel" }

func (p *Panel) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.NameKey = PanelKey(p.Name)
	return nil
}

// PanelKey is the case-insensitive identity of a panel name.
func PanelKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (p *Panel) Mapping() KeyMapping {
	out := KeyMapping{}
	decodeJSON(p.KeyMapping, &out)
	return out
}

func (p *Panel) SetMapping(m KeyMapping) {
	if m == nil {
		m = KeyMapping{}
	}
	p.KeyMapping = mustJSON(m)
}

func (p *Panel) Headers() []string {
	var out []string
	decodeJSON(p.PanelHeaders, &out)
	return out
}

func (p *Panel) SetHeaders(h []string) {
	if h == nil {
		h = []string{}
	}
	p.PanelHeaders = mustJSON(h)
}

// PanelRow is one user record of a panel generation with its categorization results.
type PanelRow struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"internal_id"`
	PanelID       uuid.UUID      `gorm:"column:panel_id;type:uuid;not null;index:idx_panel_row_generation,priority:1" json:"-"`
	UploadID      string         `gorm:"column:upload_id;not null;index:idx_panel_row_generation,priority:2" json:"upload_id"`
	RowIndex      int            `gorm:"column:row_index;not null" json:"row_index"`
	Values        datatypes.JSON `gorm:"column:data" json:"values"`
	InitialStatus string         `gorm:"column:initial_status;index" json:"initial_status"`
	FinalStatus   string         `gorm:"column:final_status;index" json:"final_status"`
	MatchedSOT    *string        `gorm:"column:matched_sot" json:"matched_sot"`
	HRStatus      string         `gorm:"column:hr_status" json:"hr_status,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (PanelRow) TableName() string { return "panel_row" }

func (r *PanelRow) Record() map[string]string {
	out := map[string]string{}
	decodeJSON(r.Values, &out)
	return out
}

func (r *PanelRow) SetRecord(rec map[string]string) { r.Values = mustJSON(rec) }
