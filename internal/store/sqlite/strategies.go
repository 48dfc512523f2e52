package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"signal-enginev1/internal/model"
	"signal-enginev1/internal/rules"
	"signal-enginev1/internal/strategy"
)

// LoadActive returns every active strategy, implementing strategy.Store.
// A row with an unparseable rule tree is skipped with a warning rather
// than failing the whole reload.
func (s *Store) LoadActive(ctx context.Context) ([]strategy.Config, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, symbol, timeframe, COALESCE(segment, ''),
		       is_system, COALESCE(action, ''), rules
		FROM strategies
		WHERE active = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load strategies: %w", err)
	}
	defer rows.Close()

	var configs []strategy.Config
	for rows.Next() {
		var (
			cfg       strategy.Config
			isSystem  int
			action    string
			rulesJSON string
		)
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.Symbol, &cfg.Timeframe,
			&cfg.Segment, &isSystem, &action, &rulesJSON); err != nil {
			return nil, fmt.Errorf("sqlite scan strategy: %w", err)
		}
		cfg.System = isSystem != 0
		cfg.Action = model.Direction(action)

		var tree rules.Tree
		if err := json.Unmarshal([]byte(rulesJSON), &tree); err != nil {
			s.log.Warn("skipping strategy with invalid rule tree", "strategy", cfg.ID, "err", err)
			continue
		}
		cfg.Rules = tree
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// UpsertStrategy inserts or replaces a strategy row. Used by seeding and
// the admin collaborator; callers must trigger a registry reload after.
func (s *Store) UpsertStrategy(ctx context.Context, cfg strategy.Config, active bool) error {
	rulesJSON, err := json.Marshal(cfg.Rules)
	if err != nil {
		return fmt.Errorf("sqlite marshal rules: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, name, symbol, timeframe, segment, is_system, action, rules, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, symbol = excluded.symbol,
			timeframe = excluded.timeframe, segment = excluded.segment,
			is_system = excluded.is_system, action = excluded.action,
			rules = excluded.rules, active = excluded.active,
			updated_at = excluded.updated_at`,
		cfg.ID, cfg.Name, cfg.Symbol, cfg.Timeframe, nullable(cfg.Segment),
		boolInt(cfg.System), nullable(string(cfg.Action)), string(rulesJSON), boolInt(active))
	if err != nil {
		return fmt.Errorf("sqlite upsert strategy: %w", err)
	}
	return nil
}

// DeactivateStrategy flags a strategy inactive so the next registry reload
// drops it from the pipeline.
func (s *Store) DeactivateStrategy(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE strategies SET active = 0, updated_at = strftime('%s', 'now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite deactivate strategy: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
