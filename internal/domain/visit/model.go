package visit

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odonto/odonto/internal/domain/odontogram"
)

var (
	ErrVisitNotFound  = errors.New("visit not found")
	ErrVisitFinalized = errors.New("visit is finalized")
)

const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
)

// Charts holds both chart layers of a visit. History is the accumulated
// chart of the patient's other finalized visits, snapshotted when the visit
// is finalized. It is nil on drafts.
type Charts struct {
	Current odontogram.Chart `json:"actual"`
	History odontogram.Chart `json:"historico,omitempty"`
}

// Visit maps to the visits table.
type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorName    string     `db:"doctor_name" json:"doctor_name"`
	DoctorLicense string     `db:"doctor_license" json:"doctor_license"`
	VisitDate     time.Time  `db:"visit_date" json:"visit_date"`
	Status        string     `db:"status" json:"status"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment     string     `db:"treatment" json:"treatment,omitempty"`
	Odontogramas  Charts     `json:"odontogramas"`
	VersionID     int        `db:"version_id" json:"version_id"`
	FinalizedAt   *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (v *Visit) Finalized() bool { return v.Status == StatusFinalized }

// ChartView is the part of the visit the accumulation reads.
func (v *Visit) ChartView() odontogram.VisitChart {
	return odontogram.VisitChart{Finalized: v.Finalized(), Current: v.Odontogramas.Current}
}
