package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

// Patient maps to the patients table. Only the fields printed on chart
// exports are kept.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Address   string     `db:"address" json:"address,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex       string     `db:"sex" json:"sex,omitempty"`
	Insurance string     `db:"insurance" json:"insurance,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

const birthDateLayout = "02/01/2006"

// BirthDateText formats the birth date the way the printed sheets show it.
func (p *Patient) BirthDateText() string {
	if p.BirthDate == nil {
		return ""
	}
	return p.BirthDate.Format(birthDateLayout)
}
