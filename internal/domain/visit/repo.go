package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// Update writes the mutable fields and bumps the version. Only drafts
	// are updated; ErrVisitFinalized is returned otherwise.
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Visit, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	// ChartsByPatient returns every visit of a patient in visit date order.
	ChartsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Visit, error)
	// InTx runs fn in one transaction; repository calls made with the
	// context passed to fn join it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
