package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/prosepolisher/internal/model"
)

func (s *SQLiteStore) LoadRules(ctx context.Context) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, is_static, disabled FROM rules ORDER BY is_static DESC, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		var id, body string
		var static, disabled bool
		if err := rows.Scan(&id, &body, &static, &disabled); err != nil {
			return nil, err
		}
		var r model.Rule
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", id, err)
		}
		r.ID, r.IsStatic, r.Disabled = id, static, disabled
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRules replaces the stored rules. Creation times of rules that are
// kept are preserved.
func (s *SQLiteStore) SaveRules(ctx context.Context, rules []model.Rule) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	created := map[string]string{}
	rows, err := tx.QueryContext(ctx, `SELECT id, created_at FROM rules`)
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			rows.Close()
			return err
		}
		created[id] = at
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for i, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("save rule %q: empty id", r.ScriptName)
		}
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		at, ok := created[r.ID]
		if !ok {
			at = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rules (id, script_name, body, is_static, disabled, position, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ScriptName, string(body), r.IsStatic, r.Disabled, i, at, now)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ExportRules returns the saved dynamic rules.
func (s *SQLiteStore) ExportRules(ctx context.Context) ([]model.Rule, error) {
	all, err := s.LoadRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Rule, 0, len(all))
	for _, r := range all {
		if !r.IsStatic {
			out = append(out, r)
		}
	}
	return out, nil
}

// ImportRules appends dynamic rules from an export. Rules whose id is
// already stored are skipped; rules without one get a fresh id.
func (s *SQLiteStore) ImportRules(ctx context.Context, rules []model.Rule) (int, error) {
	all, err := s.LoadRules(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(all))
	for _, r := range all {
		seen[r.ID] = true
	}

	imported := 0
	for _, r := range rules {
		r = model.NormalizeRule(r, false, s.newID)
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		all = append(all, r)
		imported++
	}
	if imported == 0 {
		return 0, nil
	}
	if err := s.SaveRules(ctx, all); err != nil {
		return 0, err
	}
	return imported, nil
}
