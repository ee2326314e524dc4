package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var _ Interface = &SQLStore{}

// SQLStore implements Interface over database/sql for both SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db, dialect: d, now: time.Now}, nil
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLStore) stamp() int64 {
	return s.now().UTC().UnixMilli()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) SaveInput(ctx context.Context, input Input) (Input, error) {
	createdAt := s.stamp()
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO program_input (input_text, profile_id, iteration_id, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		input.InputText, input.ProfileID, nullable(input.IterationID), createdAt,
	).Scan(&input.ID)
	if err != nil {
		return Input{}, fmt.Errorf("insert input: %w", err)
	}
	input.CreatedAt = time.UnixMilli(createdAt).UTC()
	return input, nil
}

func (s *SQLStore) ListInputs(ctx context.Context, iterationID *int64) ([]Input, error) {
	query := `SELECT id, input_text, profile_id, iteration_id, created_at FROM program_input`
	var args []any
	if iterationID == nil {
		query += ` WHERE iteration_id IS NULL`
	} else {
		query += ` WHERE iteration_id = ?`
		args = append(args, *iterationID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	defer rows.Close()

	var inputs []Input
	for rows.Next() {
		in, err := scanInput(rows)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

func (s *SQLStore) LatestInput(ctx context.Context) (Input, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_text, profile_id, iteration_id, created_at FROM program_input
		 ORDER BY created_at DESC, id DESC LIMIT 1`)
	in, err := scanInput(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Input{}, ErrNotFound
	}
	return in, err
}

func (s *SQLStore) InsertPlaceholder(ctx context.Context) (Artifact, error) {
	a := Artifact{CreatedAt: time.UnixMilli(s.stamp()).UTC()}
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO program_code (code, created_at) VALUES ('', ?) RETURNING id`),
		a.CreatedAt.UnixMilli(),
	).Scan(&a.ID)
	if err != nil {
		return Artifact{}, fmt.Errorf("insert placeholder: %w", err)
	}
	return a, nil
}

func (s *SQLStore) GetArtifact(ctx context.Context, id int64) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, code, created_at FROM program_code WHERE id = ?`), id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("artifact %d: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) LatestArtifact(ctx context.Context) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, created_at FROM program_code WHERE code <> ''
		 ORDER BY created_at DESC, id DESC LIMIT 1`)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, created_at FROM program_code WHERE code <> ''
		 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *SQLStore) GetState(ctx context.Context) (ProgramState, error) {
	var (
		st        ProgramState
		phase     string
		current   sql.NullInt64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, state, current_iteration, updated_at FROM program_state WHERE id = ?`), StateRowID,
	).Scan(&st.ID, &phase, &current, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ProgramState{ID: StateRowID}, nil
	}
	if err != nil {
		return ProgramState{}, fmt.Errorf("read state: %w", err)
	}
	st.State = Phase(phase)
	st.CurrentIteration = fromNullable(current)
	st.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return st, nil
}

func (s *SQLStore) SetPhase(ctx context.Context, phase Phase) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO program_state (id, state, current_iteration, updated_at) VALUES (?, ?, NULL, ?)
		 ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`),
		StateRowID, string(phase), s.stamp())
	if err != nil {
		return fmt.Errorf("set phase: %w", err)
	}
	return nil
}

func (s *SQLStore) SetCurrentIteration(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int64
	err = tx.QueryRowContext(ctx, s.q(`SELECT id FROM program_code WHERE id = ? AND code <> ''`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("artifact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check artifact: %w", err)
	}

	if err = s.pointAt(ctx, tx, PhaseUninitialized, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Publish(ctx context.Context, p Publication) (Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	a := Artifact{ID: p.ArtifactID, Code: p.Code}
	if p.ArtifactID == 0 {
		createdAt := s.stamp()
		err = tx.QueryRowContext(ctx,
			s.q(`INSERT INTO program_code (code, created_at) VALUES (?, ?) RETURNING id`),
			p.Code, createdAt,
		).Scan(&a.ID)
		if err != nil {
			return Artifact{}, fmt.Errorf("insert artifact: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
	} else {
		var createdAt int64
		err = tx.QueryRowContext(ctx,
			s.q(`UPDATE program_code SET code = ? WHERE id = ? RETURNING created_at`),
			p.Code, p.ArtifactID,
		).Scan(&createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, fmt.Errorf("placeholder %d: %w", p.ArtifactID, ErrNotFound)
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("fill placeholder: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
	}

	if len(p.StampInputs) > 0 {
		args := append([]any{a.ID}, idArgs(p.StampInputs)...)
		if _, err = tx.ExecContext(ctx,
			s.q(`UPDATE program_input SET iteration_id = ? WHERE id IN (`+inList(len(p.StampInputs))+`)`), args...); err != nil {
			return Artifact{}, fmt.Errorf("stamp inputs: %w", err)
		}
	}

	if p.Supersedes != nil && *p.Supersedes != a.ID {
		query := `UPDATE program_input SET iteration_id = ? WHERE iteration_id = ?`
		args := []any{a.ID, *p.Supersedes}
		if len(p.Folded) > 0 {
			query += ` AND id NOT IN (` + inList(len(p.Folded)) + `)`
			args = append(args, idArgs(p.Folded)...)
		}
		if _, err = tx.ExecContext(ctx, s.q(query), args...); err != nil {
			return Artifact{}, fmt.Errorf("carry late inputs: %w", err)
		}
	}

	if err = s.pointAt(ctx, tx, PhaseIteration, a.ID); err != nil {
		return Artifact{}, err
	}
	if err = tx.Commit(); err != nil {
		return Artifact{}, fmt.Errorf("commit publish: %w", err)
	}
	return a, nil
}

func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// pointAt moves the current pointer. An empty phase keeps the stored one (INITIAL for a new row).
func (s *SQLStore) pointAt(ctx context.Context, tx *sql.Tx, phase Phase, id int64) error {
	insertPhase := phase
	if insertPhase == PhaseUninitialized {
		insertPhase = PhaseInitial
	}
	query := `INSERT INTO program_state (id, state, current_iteration, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET current_iteration = excluded.current_iteration, updated_at = excluded.updated_at`
	if phase != PhaseUninitialized {
		query += `, state = excluded.state`
	}
	if _, err := tx.ExecContext(ctx, s.q(query), StateRowID, string(insertPhase), id, s.stamp()); err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInput(row scanner) (Input, error) {
	var (
		in        Input
		iteration sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&in.ID, &in.InputText, &in.ProfileID, &iteration, &createdAt); err != nil {
		return Input{}, err
	}
	in.IterationID = fromNullable(iteration)
	in.CreatedAt = time.UnixMilli(createdAt).UTC()
	return in, nil
}

func scanArtifact(row scanner) (Artifact, error) {
	var (
		a         Artifact
		createdAt int64
	)
	if err := row.Scan(&a.ID, &a.Code, &createdAt); err != nil {
		return Artifact{}, err
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return a, nil
}

func nullable(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullable(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
