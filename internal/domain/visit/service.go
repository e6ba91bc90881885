package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/domain/chartexport"
	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/domain/patient"
)

// PatientSource resolves the patient a visit belongs to.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientSource
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientSource, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateVisit stores a new draft. Without an explicit chart the current
// chart starts from the patient's history: every tooth extracted or missing
// in a finalized visit is marked missing.
func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if _, err := s.patients.GetPatient(ctx, v.PatientID); err != nil {
		return fmt.Errorf("lookup patient: %w", err)
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = s.now().UTC()
	}
	v.Status = StatusDraft
	v.FinalizedAt = nil
	v.Odontogramas.History = nil

	if v.Odontogramas.Current == nil {
		h := s.History(ctx, v.PatientID, uuid.Nil)
		v.Odontogramas.Current = odontogram.SeedChart(h.ExtractedToothIDs).Sparse()
	} else {
		if err := odontogram.ValidateChart(v.Odontogramas.Current); err != nil {
			return err
		}
		v.Odontogramas.Current = v.Odontogramas.Current.Sparse()
	}
	return s.repo.Create(ctx, v)
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListVisitsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Details are the header fields of a draft that can change after creation.
type Details struct {
	DoctorName    *string    `json:"doctor_name"`
	DoctorLicense *string    `json:"doctor_license"`
	VisitDate     *time.Time `json:"visit_date"`
	Diagnosis     *string    `json:"diagnosis"`
	Treatment     *string    `json:"treatment"`
}

func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, d Details) (*Visit, error) {
	v, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.DoctorName != nil {
		v.DoctorName = *d.DoctorName
	}
	if d.DoctorLicense != nil {
		v.DoctorLicense = *d.DoctorLicense
	}
	if d.VisitDate != nil {
		if d.VisitDate.IsZero() {
			return nil, fmt.Errorf("visit_date cannot be empty")
		}
		v.VisitDate = d.VisitDate.UTC()
	}
	if d.Diagnosis != nil {
		v.Diagnosis = *d.Diagnosis
	}
	if d.Treatment != nil {
		v.Treatment = *d.Treatment
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SaveCurrentChart replaces the current chart of a draft.
func (s *Service) SaveCurrentChart(ctx context.Context, id uuid.UUID, chart odontogram.Chart) (*Visit, error) {
	if err := odontogram.ValidateChart(chart); err != nil {
		return nil, err
	}
	v, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Odontogramas.Current = chart.Sparse()
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// FinalizeVisit closes a draft and snapshots the historical chart shown
// alongside it: the accumulation of the patient's other finalized visits.
// The read of prior visits and the write of the snapshot share one
// transaction. Other visits are not modified.
func (s *Service) FinalizeVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var (
		v    *Visit
		hist odontogram.History
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.draft(ctx, id)
		if err != nil {
			return err
		}
		prior, err := s.priorCharts(ctx, v.PatientID, v.ID)
		if err != nil {
			return fmt.Errorf("load prior visits: %w", err)
		}
		hist = odontogram.Accumulate(prior)

		now := s.now().UTC()
		v.Status = StatusFinalized
		v.FinalizedAt = &now
		v.Odontogramas.History = hist.Chart
		return s.repo.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("visit_id", v.ID.String()).
		Str("patient_id", v.PatientID.String()).
		Int("historical_teeth", len(hist.Chart)).
		Msg("visit finalized")
	return v, nil
}

// DeleteVisit removes a draft.
func (s *Service) DeleteVisit(ctx context.Context, id uuid.UUID) error {
	if _, err := s.draft(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// History accumulates the patient's finalized visits, leaving out exclude.
// A repository failure is logged and yields an empty history.
func (s *Service) History(ctx context.Context, patientID, exclude uuid.UUID) odontogram.History {
	prior, err := s.priorCharts(ctx, patientID, exclude)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Msg("history unavailable, continuing with empty history")
		return odontogram.Accumulate(nil)
	}
	return odontogram.Accumulate(prior)
}

func (s *Service) priorCharts(ctx context.Context, patientID, exclude uuid.UUID) ([]odontogram.VisitChart, error) {
	visits, err := s.repo.ChartsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]odontogram.VisitChart, 0, len(visits))
	for _, v := range visits {
		if v.ID == exclude {
			continue
		}
		out = append(out, v.ChartView())
	}
	return out, nil
}

func (s *Service) draft(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Finalized() {
		return nil, ErrVisitFinalized
	}
	return v, nil
}

// Document gathers what a chart export prints for a visit. Drafts print the
// live history of the patient; finalized visits print their snapshot.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (chartexport.Document, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return chartexport.Document{}, err
	}
	p, err := s.patients.GetPatient(ctx, v.PatientID)
	if err != nil {
		return chartexport.Document{}, fmt.Errorf("lookup patient: %w", err)
	}

	historical := v.Odontogramas.History
	if !v.Finalized() {
		historical = s.History(ctx, v.PatientID, v.ID).Chart
	}

	return chartexport.Document{
		Patient: chartexport.PatientInfo{
			Name:      p.Name,
			Address:   p.Address,
			BirthDate: p.BirthDateText(),
			Sex:       p.Sex,
			Insurance: p.Insurance,
		},
		Visit: chartexport.VisitInfo{
			DoctorName:    v.DoctorName,
			DoctorLicense: v.DoctorLicense,
			Date:          v.VisitDate,
			Diagnosis:     v.Diagnosis,
			Treatment:     v.Treatment,
			Historical:    historical,
			Current:       v.Odontogramas.Current,
		},
	}, nil
}
