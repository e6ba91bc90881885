package visit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `id, patient_id, doctor_name, doctor_license, visit_date, status,
	diagnosis, treatment, chart_current, chart_history, version_id, finalized_at,
	created_at, updated_at`

// encodeChart returns nil for a nil chart so the column stores NULL.
func encodeChart(c odontogram.Chart) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	current, err := encodeChart(v.Odontogramas.Current)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if current == nil {
		current = []byte("[]")
	}
	history, err := encodeChart(v.Odontogramas.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visits (
			id, patient_id, doctor_name, doctor_license, visit_date, status,
			diagnosis, treatment, chart_current, chart_history
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING version_id, created_at, updated_at`,
		v.ID, v.PatientID, v.DoctorName, v.DoctorLicense, v.VisitDate, v.Status,
		v.Diagnosis, v.Treatment, current, history,
	).Scan(&v.VersionID, &v.CreatedAt, &v.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	return v, err
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	current, err := encodeChart(v.Odontogramas.Current)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if current == nil {
		current = []byte("[]")
	}
	history, err := encodeChart(v.Odontogramas.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE visits SET
			doctor_name=$2, doctor_license=$3, visit_date=$4, status=$5,
			diagnosis=$6, treatment=$7, chart_current=$8, chart_history=$9,
			finalized_at=$10, version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING version_id, updated_at`,
		v.ID, v.DoctorName, v.DoctorLicense, v.VisitDate, v.Status,
		v.Diagnosis, v.Treatment, current, history, v.FinalizedAt,
	).Scan(&v.VersionID, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.stateError(ctx, v.ID)
	}
	return err
}

// stateError explains why a draft-only statement matched no row.
func (r *repoPG) stateError(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM visits WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVisitNotFound
	}
	if err != nil {
		return err
	}
	return ErrVisitFinalized
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visits WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.stateError(ctx, id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visits`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visits ORDER BY visit_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	visits, err := collectVisits(rows)
	return visits, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE patient_id = $1 ORDER BY visit_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	visits, err := collectVisits(rows)
	return visits, total, err
}

func (r *repoPG) ChartsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE patient_id = $1 ORDER BY visit_date, created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var (
		v       Visit
		current []byte
		history []byte
	)
	err := row.Scan(
		&v.ID, &v.PatientID, &v.DoctorName, &v.DoctorLicense, &v.VisitDate, &v.Status,
		&v.Diagnosis, &v.Treatment, &current, &history, &v.VersionID, &v.FinalizedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &v.Odontogramas.Current); err != nil {
			return nil, fmt.Errorf("decode chart of visit %s: %w", v.ID, err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &v.Odontogramas.History); err != nil {
			return nil, fmt.Errorf("decode history of visit %s: %w", v.ID, err)
		}
	}
	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]*Visit, error) {
	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
