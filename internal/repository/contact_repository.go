package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
)

// ContactRepositoryInterface defines methods used by service
type ContactRepositoryInterface interface {
	GetByID(ctx context.Context, tenantID, id string) (*model.Contact, error)
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]model.Contact, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID within a tenant
func (r *ContactRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	query := `
        SELECT id, tenant_id, phone, first_name, last_name, notes
        FROM contacts
        WHERE tenant_id = $1 AND id = $2
    `
	var c model.Contact
	err := r.DB.QueryRowContext(ctx, query, tenantID, id).Scan(&c.ID, &c.TenantID, &c.Phone, &c.FirstName, &c.LastName, &c.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewContactNotFound(id)
		}
		return nil, errors.Wrap(err, "get contact")
	}
	return &c, nil
}

// ListByIDs fetches the campaign audience. Unknown ids are skipped.
func (r *ContactRepository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]model.Contact, error) {
	query := `
        SELECT id, tenant_id, phone, first_name, last_name, notes
        FROM contacts
        WHERE tenant_id = $1 AND id = ANY($2)
        ORDER BY id
    `
	rows, err := r.DB.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "list contacts")
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Phone, &c.FirstName, &c.LastName, &c.Notes); err != nil {
			return nil, errors.Wrap(err, "scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, errors.Wrap(rows.Err(), "iterate contacts")
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
