package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"project-polaris/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore keeps projects and nodes in the `projects` and `files` tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

type pgTx struct {
	tx pgx.Tx
}

// translate maps driver errors onto the store's sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func (t *pgTx) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT id, owner_id, name, created_at, updated_at FROM projects WHERE id = $1`
	var p models.Project
	err := t.tx.QueryRow(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *pgTx) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC`
	rows, err := t.tx.Query(ctx, query, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (t *pgTx) InsertProject(ctx context.Context, p *models.Project) error {
	query := `INSERT INTO projects (id, owner_id, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := t.tx.Exec(ctx, query, p.ID, p.OwnerID, p.Name, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (t *pgTx) PatchProject(ctx context.Context, id uuid.UUID, patch ProjectPatch) error {
	query := `UPDATE projects SET name = COALESCE($2, name), updated_at = $3 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query, id, patch.Name, patch.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const nodeColumns = `id, project_id, parent_id, type, name, content, storage_id, updated_at`

func scanNode(row pgx.Row) (*models.FileNode, error) {
	var n models.FileNode
	var typ string
	if err := row.Scan(&n.ID, &n.ProjectID, &n.ParentID, &typ, &n.Name, &n.Content, &n.StorageID, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NodeType(typ)
	return &n, nil
}

func (t *pgTx) GetNode(ctx context.Context, id uuid.UUID) (*models.FileNode, error) {
	n, err := scanNode(t.tx.QueryRow(ctx, `SELECT `+nodeColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return n, nil
}

func (t *pgTx) queryNodes(ctx context.Context, query string, args ...any) ([]*models.FileNode, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var nodes []*models.FileNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (t *pgTx) ListNodes(ctx context.Context, projectID uuid.UUID) ([]*models.FileNode, error) {
	return t.queryNodes(ctx, `SELECT `+nodeColumns+` FROM files WHERE project_id = $1`, projectID)
}

func (t *pgTx) ListChildren(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]*models.FileNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM files WHERE project_id = $1 AND parent_id IS NOT DISTINCT FROM $2::uuid`
	return t.queryNodes(ctx, query, projectID, parentID)
}

func (t *pgTx) InsertNode(ctx context.Context, n *models.FileNode) error {
	query := `INSERT INTO files (` + nodeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.tx.Exec(ctx, query, n.ID, n.ProjectID, n.ParentID, string(n.Type), n.Name, n.Content, n.StorageID, n.UpdatedAt)
	return translate(err)
}

func (t *pgTx) PatchNode(ctx context.Context, id uuid.UUID, patch NodePatch) error {
	query := `UPDATE files SET name = COALESCE($2, name), content = COALESCE($3, content), updated_at = $4 WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query, id, patch.Name, patch.Content, patch.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteNode(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) StorageRefs(ctx context.Context, handle string) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM files WHERE storage_id = $1`, handle)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgTx) LockScope(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) error {
	key := projectID.String() + "/"
	if parentID != nil {
		key += parentID.String()
	}
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return translate(err)
}
