package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
)

type TenantRepositoryInterface interface {
	GetProfile(ctx context.Context, tenantID string) (*model.TenantProfile, error)
}

type TenantRepository struct {
	DB *sql.DB
}

// GetProfile joins the tenant with its active voice agent. Agent fields are
// empty when the tenant has no active agent.
func (r *TenantRepository) GetProfile(ctx context.Context, tenantID string) (*model.TenantProfile, error) {
	query := `
        SELECT t.id, t.business_name, t.timezone,
               COALESCE(a.agent_id, ''), COALESCE(a.agent_name, ''),
               COALESCE(a.outbound_number, ''), COALESCE(a.transfer_number, '')
        FROM tenants t
        LEFT JOIN voice_agents a ON a.tenant_id = t.id AND a.is_active
        WHERE t.id = $1`
	var p model.TenantProfile
	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(
		&p.TenantID, &p.BusinessName, &p.Timezone, &p.AgentID, &p.AgentName, &p.OutboundNumber, &p.TransferNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewTenantNotFound(tenantID)
		}
		return nil, errors.Wrap(err, "get tenant profile")
	}
	return &p, nil
}

var _ TenantRepositoryInterface = (*TenantRepository)(nil)
