package domain

import (
	"time"

	"github.com/google/uuid"
)

type AgencyRole string

const (
	RoleAwarding AgencyRole = "awarding"
	RoleFunding  AgencyRole = "funding"
	// RoleNone applies to E and F generations, which are not split by
	// agency role.
	RoleNone AgencyRole = ""
)

// FileGeneration is a cacheable artifact request. Its identity is the
// tuple (file_type, agency_code, agency_role, start, end); at most one
// row per tuple holds is_cached=true at a time.
type FileGeneration struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RequestDate  time.Time  `gorm:"column:request_date;not null;index" json:"request_date"`
	FileType     FileType   `gorm:"column:file_type;not null;index:idx_filegen_key" json:"file_type"`
	AgencyCode   string     `gorm:"column:agency_code;not null;index:idx_filegen_key" json:"agency_code"`
	AgencyRole   AgencyRole `gorm:"column:agency_role;index:idx_filegen_key" json:"agency_role"`
	StartDate    time.Time  `gorm:"column:start_date;not null;index:idx_filegen_key" json:"start_date"`
	EndDate      time.Time  `gorm:"column:end_date;not null;index:idx_filegen_key" json:"end_date"`
	FilePath     string     `gorm:"column:file_path" json:"file_path,omitempty"`
	NumberOfRows int        `gorm:"column:number_of_rows;not null;default:0" json:"number_of_rows"`
	IsCached     bool       `gorm:"column:is_cached;not null;default:false;index" json:"is_cached"`
	ParentJobID  *uuid.UUID `gorm:"type:uuid;column:parent_job_id" json:"parent_job_id,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (FileGeneration) TableName() string { return "file_generation" }

// GenerationKey is the cache identity of a FileGeneration.
type GenerationKey struct {
	FileType   FileType
	AgencyCode string
	AgencyRole AgencyRole
	Start      time.Time
	End        time.Time
}

func (g *FileGeneration) Key() GenerationKey {
	return GenerationKey{
		FileType:   g.FileType,
		AgencyCode: g.AgencyCode,
		AgencyRole: g.AgencyRole,
		Start:      g.StartDate,
		End:        g.EndDate,
	}
}
