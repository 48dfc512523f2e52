package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signal-enginev1/internal/model"
)

// Publish persists a freshly generated signal, implementing
// model.SignalSink.
func (s *Store) Publish(ctx context.Context, sig model.GeneratedSignal) error {
	targets, err := json.Marshal(sig.Targets)
	if err != nil {
		return fmt.Errorf("sqlite marshal targets: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signals (strategy_id, symbol, segment, direction, entry_price,
		                     stop_loss, targets, reason, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.StrategyID, sig.Symbol, nullable(sig.Segment), string(sig.Direction),
		sig.EntryPrice, sig.StopLoss, string(targets), nullable(sig.Reason),
		model.SignalActive, sig.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// LoadOpen returns all signals still in the Active state, implementing
// monitor.Store.
func (s *Store) LoadOpen(ctx context.Context) ([]model.GeneratedSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_id, symbol, COALESCE(segment, ''), direction,
		       entry_price, stop_loss, targets, COALESCE(reason, ''), generated_at
		FROM signals
		WHERE status = ?
		ORDER BY id`, model.SignalActive)
	if err != nil {
		return nil, fmt.Errorf("sqlite load open signals: %w", err)
	}
	defer rows.Close()

	var signals []model.GeneratedSignal
	for rows.Next() {
		var (
			sig         model.GeneratedSignal
			direction   string
			targetsJSON string
			generatedAt int64
		)
		if err := rows.Scan(&sig.ID, &sig.StrategyID, &sig.Symbol, &sig.Segment,
			&direction, &sig.EntryPrice, &sig.StopLoss, &targetsJSON,
			&sig.Reason, &generatedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		sig.Direction = model.Direction(direction)
		sig.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		if err := json.Unmarshal([]byte(targetsJSON), &sig.Targets); err != nil {
			s.log.Warn("signal row has invalid targets JSON", "signal", sig.ID, "err", err)
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// CloseSignal marks a signal with a terminal status, implementing
// monitor.Store.
func (s *Store) CloseSignal(ctx context.Context, id int64, status string, exitPrice float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE signals
		SET status = ?, exit_price = ?, closed_at = strftime('%s', 'now')
		WHERE id = ? AND status = ?`,
		status, exitPrice, id, model.SignalActive)
	if err != nil {
		return fmt.Errorf("sqlite close signal: %w", err)
	}
	return nil
}
