package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/keystone-uw/underwriting-engine/pkg/apperrors"
	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

// GuidelineRepository provides data access for guidelines and their rules.
type GuidelineRepository interface {
	// Create inserts the guideline together with its rules.
	Create(ctx context.Context, g *underwriting.Guideline) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*underwriting.Guideline, error)
	// List returns every guideline of the tenant ordered by name.
	List(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error)
	// ListActive returns the tenant's Active guidelines.
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error)
	// Update writes g and replaces its rules. It fails with apperrors.ErrConflict
	// if the stored version or status no longer match what the caller read.
	Update(ctx context.Context, g *underwriting.Guideline, expectedVersion int, expectedStatus underwriting.GuidelineStatus) error
}

type guidelineRepository struct{}

// NewGuidelineRepository creates a new GuidelineRepository.
func NewGuidelineRepository() GuidelineRepository {
	return &guidelineRepository{}
}

var _ GuidelineRepository = (*guidelineRepository)(nil)

const guidelineColumns = `
	id, tenant_id, name, description, status, effective_date, expiration_date,
	version, coverage_types, states, naics_prefixes, created_at, updated_at`

// ============================================================================
// CRUD Operations
// ============================================================================

func (r *guidelineRepository) Create(ctx context.Context, g *underwriting.Guideline) error {
	scope, err := database.RequireTenantScope(ctx, g.TenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		INSERT INTO uw_guidelines (
			id, tenant_id, name, description, status, effective_date, expiration_date,
			version, coverage_types, states, naics_prefixes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		g.ID, g.TenantID, g.Name, g.Description, g.Status, g.EffectiveDate, g.ExpirationDate,
		g.Version, g.CoverageTypes, g.States, g.NAICSPrefixes, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create guideline: %w", err)
	}

	if err := insertRules(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *guidelineRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*underwriting.Guideline, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + guidelineColumns + `
		FROM uw_guidelines
		WHERE tenant_id = $1 AND id = $2`

	g, err := scanGuideline(scope.Conn.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	if err := loadRules(ctx, scope.Conn, tenantID, []*underwriting.Guideline{g}); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *guidelineRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	return r.list(ctx, tenantID, nil)
}

func (r *guidelineRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, error) {
	status := underwriting.GuidelineStatusActive
	return r.list(ctx, tenantID, &status)
}

func (r *guidelineRepository) list(ctx context.Context, tenantID uuid.UUID, status *underwriting.GuidelineStatus) ([]*underwriting.Guideline, error) {
	scope, err := database.RequireTenantScope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + guidelineColumns + `
		FROM uw_guidelines
		WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY name, id`

	rows, err := scope.Conn.Query(ctx, query, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query guidelines: %w", err)
	}
	defer rows.Close()

	guidelines := make([]*underwriting.Guideline, 0)
	for rows.Next() {
		g, err := scanGuideline(rows)
		if err != nil {
			return nil, err
		}
		guidelines = append(guidelines, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guidelines: %w", err)
	}

	if err := loadRules(ctx, scope.Conn, tenantID, guidelines); err != nil {
		return nil, err
	}
	return guidelines, nil
}

func (r *guidelineRepository) Update(ctx context.Context, g *underwriting.Guideline, expectedVersion int, expectedStatus underwriting.GuidelineStatus) error {
	scope, err := database.RequireTenantScope(ctx, g.TenantID)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	now := time.Now().UTC()
	query := `
		UPDATE uw_guidelines
		SET name = $4, description = $5, status = $6, effective_date = $7,
		    expiration_date = $8, version = $9, coverage_types = $10, states = $11,
		    naics_prefixes = $12, updated_at = $13
		WHERE tenant_id = $1 AND id = $2 AND version = $3 AND status = $14`

	result, err := tx.Exec(ctx, query,
		g.TenantID, g.ID, expectedVersion,
		g.Name, g.Description, g.Status, g.EffectiveDate, g.ExpirationDate,
		g.Version, g.CoverageTypes, g.States, g.NAICSPrefixes, now, expectedStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update guideline: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM uw_guidelines WHERE tenant_id = $1 AND id = $2)",
			g.TenantID, g.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check guideline: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("guideline %s changed since version %d (%s): %w", g.ID, expectedVersion, expectedStatus, apperrors.ErrConflict)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM uw_guideline_rules WHERE tenant_id = $1 AND guideline_id = $2",
		g.TenantID, g.ID); err != nil {
		return fmt.Errorf("failed to delete guideline rules: %w", err)
	}
	if err := insertRules(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	g.UpdatedAt = now
	return nil
}

// ============================================================================
// Rules
// ============================================================================

func insertRules(ctx context.Context, tx pgx.Tx, g *underwriting.Guideline) error {
	if len(g.Rules) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, rule := range g.Rules {
		var modifier *string
		if rule.PricingModifier != nil {
			s := rule.PricingModifier.String()
			modifier = &s
		}
		conditions := rule.Conditions
		if conditions == nil {
			conditions = []underwriting.RuleCondition{}
		}
		batch.Queue(`
			INSERT INTO uw_guideline_rules (
				id, tenant_id, guideline_id, name, description, rule_type, action,
				priority, is_active, score_adjustment, pricing_modifier, message,
				conditions, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14)`,
			rule.ID, g.TenantID, g.ID, rule.Name, rule.Description, rule.Type, rule.Action,
			rule.Priority, rule.IsActive, rule.ScoreAdjustment, modifier, rule.Message,
			conditions, i,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert guideline rules: %w", err)
	}
	return nil
}

// querier is the subset of pgx connections and transactions used for reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadRules attaches rules to guidelines in stored order.
func loadRules(ctx context.Context, q querier, tenantID uuid.UUID, guidelines []*underwriting.Guideline) error {
	if len(guidelines) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*underwriting.Guideline, len(guidelines))
	ids := make([]uuid.UUID, 0, len(guidelines))
	for _, g := range guidelines {
		g.Rules = []*underwriting.Rule{}
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	query := `
		SELECT guideline_id, id, name, description, rule_type, action, priority,
		       is_active, score_adjustment, pricing_modifier::text, message, conditions
		FROM uw_guideline_rules
		WHERE tenant_id = $1 AND guideline_id = ANY($2)
		ORDER BY guideline_id, position`

	rows, err := q.Query(ctx, query, tenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to query guideline rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			guidelineID uuid.UUID
			rule        underwriting.Rule
			modifier    *string
			conditions  []byte
		)
		if err := rows.Scan(&guidelineID, &rule.ID, &rule.Name, &rule.Description, &rule.Type,
			&rule.Action, &rule.Priority, &rule.IsActive, &rule.ScoreAdjustment, &modifier,
			&rule.Message, &conditions); err != nil {
			return fmt.Errorf("failed to scan guideline rule: %w", err)
		}

		if modifier != nil {
			d, err := decimal.NewFromString(*modifier)
			if err != nil {
				return fmt.Errorf("failed to parse pricing modifier of rule %s: %w", rule.ID, err)
			}
			rule.PricingModifier = &d
		}
		if err := unmarshalJSONB(conditions, &rule.Conditions, "conditions"); err != nil {
			return err
		}
		if rule.Conditions == nil {
			rule.Conditions = []underwriting.RuleCondition{}
		}

		if g, ok := byID[guidelineID]; ok {
			g.Rules = append(g.Rules, &rule)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating guideline rules: %w", err)
	}
	return nil
}

func scanGuideline(row pgx.Row) (*underwriting.Guideline, error) {
	var g underwriting.Guideline
	err := row.Scan(
		&g.ID, &g.TenantID, &g.Name, &g.Description, &g.Status, &g.EffectiveDate, &g.ExpirationDate,
		&g.Version, &g.CoverageTypes, &g.States, &g.NAICSPrefixes, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan guideline: %w", err)
	}
	return &g, nil
}
