package recon

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SourceOfTruth is a named reference dataset users are matched against.
type SourceOfTruth struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Category     string         `gorm:"column:category;not null" json:"category"`
	Precedence   int            `gorm:"column:precedence;not null;index" json:"precedence"`
	Fields       datatypes.JSON `gorm:"column:fields" json:"fields"`
	RowCount     int            `gorm:"column:row_count;not null;default:0" json:"row_count"`
	CurrentDocID string         `gorm:"column:current_doc_id" json:"current_doc_id,omitempty"`
	CreatedBy    string         `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (SourceOfTruth) TableName() string { return "source_of_truth" }

func (s *SourceOfTruth) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *SourceOfTruth) FieldList() []string {
	var out []string
	decodeJSON(s.Fields, &out)
	return out
}

func (s *SourceOfTruth) SetFields(fields []string) {
	if fields == nil {
		fields = []string{}
	}
	s.Fields = mustJSON(fields)
}

// SOTRow is one record of a SOT; Values holds exactly the SOT's fields.
type SOTRow struct {
	ID       int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SOTID    uuid.UUID      `gorm:"column:sot_id;type:uuid;not null;index" json:"sot_id"`
	RowIndex int            `gorm:"column:row_index;not null" json:"row_index"`
	Values   datatypes.JSON `gorm:"column:data" json:"values"`
}

func (SOTRow) TableName() string { return "sot_row" }

func (r *SOTRow) Record() map[string]string {
	out := map[string]string{}
	decodeJSON(r.Values, &out)
	return out
}

func (r *SOTRow) SetRecord(rec map[string]string) { r.Values = mustJSON(rec) }

// SOTUpload records each SOT file upload attempt.
type SOTUpload struct {
	DocID        string       `gorm:"column:doc_id;primaryKey" json:"doc_id"`
	SOTName      string       `gorm:"column:sot_name;not null;index" json:"sot_name"`
	DocName      string       `gorm:"column:doc_name" json:"doc_name"`
	UploadedBy   string       `gorm:"column:uploaded_by" json:"uploaded_by"`
	TotalRecords int          `gorm:"column:total_records;not null;default:0" json:"total_records"`
	Status       UploadStatus `gorm:"column:status;not null;index" json:"status"`
	Error        string       `gorm:"column:error" json:"error,omitempty"`
	FileHash     string       `gorm:"column:file_hash;index" json:"file_hash,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;index" json:"timestamp"`
}

func (SOTUpload) TableName() string { return "sot_upload" }
