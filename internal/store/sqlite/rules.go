package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

type RuleRepo struct{ db *DB }

func NewRuleRepo(db *DB) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) ListFilters(ctx context.Context, kind domain.FilterSourceKind) ([]domain.Filter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, source_kind, inverse, expression, created_at FROM filters
		 WHERE source_kind = ? ORDER BY created_at`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Filter
	for rows.Next() {
		var f domain.Filter
		var id, sourceKind, createdAt string
		if err := rows.Scan(&id, &f.Name, &sourceKind, &f.Inverse, &f.Expression, &createdAt); err != nil {
			return nil, err
		}
		f.ID = uuid.MustParse(id)
		f.SourceKind = domain.FilterSourceKind(sourceKind)
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListDataMappingRules returns active rules for kind ordered per the
// resolved sort_order/created_at tiebreak (spec open question #2).
func (r *RuleRepo) ListDataMappingRules(ctx context.Context, kind domain.FilterSourceKind) ([]domain.DataMappingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, source_kind, scope, sort_order, active, expression, created_at
		 FROM data_mapping_rules WHERE source_kind = ? AND active = 1
		 ORDER BY sort_order ASC, created_at ASC`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DataMappingRule
	for rows.Next() {
		var d domain.DataMappingRule
		var id, sourceKind, scope, createdAt string
		if err := rows.Scan(&id, &d.Name, &sourceKind, &scope, &d.SortOrder, &d.Active,
			&d.Expression, &createdAt); err != nil {
			return nil, err
		}
		d.ID = uuid.MustParse(id)
		d.SourceKind = domain.FilterSourceKind(sourceKind)
		d.Scope = domain.RuleScope(scope)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}
