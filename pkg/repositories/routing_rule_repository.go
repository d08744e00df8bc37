package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// RoutingRuleRepository provides data access for submission routing rules.
type RoutingRuleRepository interface {
	Create(ctx context.Context, rule *underwriting.RoutingRule) error
	// List returns the tenant's routing rules in ascending priority.
	List(ctx context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type routingRuleRepository struct{}

// NewRoutingRuleRepository creates a new RoutingRuleRepository.
func NewRoutingRuleRepository() RoutingRuleRepository {
	return &routingRuleRepository{}
}

var _ RoutingRuleRepository = (*routingRuleRepository)(nil)

func (r *routingRuleRepository) Create(ctx context.Context, rule *underwriting.RoutingRule) error {
	scope, err := database.RequireTenantScope(ctx, rule.TenantID)
	if err != nil {
		return err
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	conditions := rule.Conditions
	if conditions == nil {
		conditions = []underwriting.RoutingCondition{}
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO uw_routing_rules (
			id, tenant_id, name, priority, is_active, conditions, assign_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	_, err = scope.Conn.Exec(ctx, query,
		rule.ID, rule.TenantID, rule.Name, rule.Priority, rule.IsActive, conditions, rule.AssignTo, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create routing rule: %w", err)
	}
	return nil
}

func (r *routingRuleRepository) List(ctx context.Context, tenantID uuid.UUID) ([]underwriting.RoutingRule, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, priority, is_active, conditions, assign_to
		FROM uw_routing_rules
		WHERE tenant_id = $1
		ORDER BY priority, created_at, id`

	rows, err := scope.Conn.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing rules: %w", err)
	}
	defer rows.Close()

	rules := make([]underwriting.RoutingRule, 0)
	for rows.Next() {
		var (
			rule       underwriting.RoutingRule
			conditions []byte
		)
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.Priority,
			&rule.IsActive, &conditions, &rule.AssignTo); err != nil {
			return nil, fmt.Errorf("failed to scan routing rule: %w", err)
		}
		if err := unmarshalJSONB(conditions, &rule.Conditions, "conditions"); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routing rules: %w", err)
	}

	return rules, nil
}

func (r *routingRuleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return err
	}

	result, err := scope.Conn.Exec(ctx,
		"DELETE FROM uw_routing_rules WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete routing rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
