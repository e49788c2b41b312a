package coa

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/platform/db"
)

// TxRepository exposes transactional catalogue operations.
type TxRepository interface {
	GetNode(ctx context.Context, id int64) (CodeNode, error)
	CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error)
	InsertNode(ctx context.Context, node CodeNode) (int64, error)
	UpdateNode(ctx context.Context, node CodeNode) error
	DeleteNode(ctx context.Context, id int64) error
	HasChildren(ctx context.Context, id int64) (bool, error)
	NodeReferenced(ctx context.Context, id int64) (bool, error)

	GetDetail(ctx context.Context, id int64) (Detail, error)
	DetailCodeInUse(ctx context.Context, code string, excludeID int64) (bool, error)
	InsertDetail(ctx context.Context, detail Detail) (int64, error)
	UpdateDetail(ctx context.Context, detail Detail) error
	DeleteDetail(ctx context.Context, id int64) error
	DetailReferenced(ctx context.Context, id int64) (bool, error)
	UsedDetailCodes(ctx context.Context) ([]string, error)

	InsertLink(ctx context.Context, link DetailLink) (int64, error)
	DeleteLink(ctx context.Context, detailID, nodeID int64) error
	LinksForDetail(ctx context.Context, detailID int64) ([]DetailLink, error)
}

// RepositoryPort abstracts transactional repository behaviour for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetNode(ctx context.Context, id int64) (CodeNode, error)
	ListNodes(ctx context.Context, filter NodeFilter) ([]CodeNode, int, error)
	GetDetail(ctx context.Context, id int64) (Detail, error)
	ListDetails(ctx context.Context, filter DetailFilter) ([]Detail, int, error)
}

// NodeFilter narrows node listings.
type NodeFilter struct {
	Kind     *NodeKind
	ParentID *int64
	Limit    int
	Offset   int
}

// DetailFilter narrows detail listings.
type DetailFilter struct {
	Kind   *DetailKind
	Search string
	Limit  int
	Offset int
}

// Repository persists catalogue entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("coa repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const nodeColumns = `id, parent_id, code, title, kind, is_active, nature, created_at, updated_at`

func scanNode(row pgx.Row) (CodeNode, error) {
	var n CodeNode
	err := row.Scan(&n.ID, &n.ParentID, &n.Code, &n.Title, &n.Kind, &n.IsActive, &n.Nature, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// GetNode fetches a node outside a transaction.
func (r *Repository) GetNode(ctx context.Context, id int64) (CodeNode, error) {
	node, err := scanNode(r.pool.QueryRow(ctx, `SELECT `+nodeColumns+` FROM code_nodes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CodeNode{}, ErrNodeNotFound
	}
	return node, err
}

// ListNodes returns nodes matching the filter plus the total count.
func (r *Repository) ListNodes(ctx context.Context, filter NodeFilter) ([]CodeNode, int, error) {
	where := "TRUE"
	args := []any{}
	argPos := 1
	if filter.Kind != nil {
		where += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, *filter.Kind)
		argPos++
	}
	if filter.ParentID != nil {
		where += fmt.Sprintf(" AND parent_id = $%d", argPos)
		args = append(args, *filter.ParentID)
		argPos++
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM code_nodes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM code_nodes WHERE %s ORDER BY code LIMIT $%d OFFSET $%d`, nodeColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var nodes []CodeNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, 0, err
		}
		nodes = append(nodes, node)
	}
	return nodes, total, rows.Err()
}

const detailColumns = `id, code, title, kind, is_active, created_at, updated_at`

func scanDetail(row pgx.Row) (Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.Code, &d.Title, &d.Kind, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// GetDetail fetches a detail outside a transaction.
func (r *Repository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	detail, err := scanDetail(r.pool.QueryRow(ctx, `SELECT `+detailColumns+` FROM details WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrDetailNotFound
	}
	return detail, err
}

// ListDetails returns details matching the filter plus the total count.
func (r *Repository) ListDetails(ctx context.Context, filter DetailFilter) ([]Detail, int, error) {
	where := "TRUE"
	args := []any{}
	argPos := 1
	if filter.Kind != nil {
		where += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, *filter.Kind)
		argPos++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (code ILIKE $%d OR title ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM details WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM details WHERE %s ORDER BY code LIMIT $%d OFFSET $%d`, detailColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var details []Detail
	for rows.Next() {
		detail, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, detail)
	}
	return details, total, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetNode(ctx context.Context, id int64) (CodeNode, error) {
	node, err := scanNode(r.tx.QueryRow(ctx, `SELECT `+nodeColumns+` FROM code_nodes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CodeNode{}, ErrNodeNotFound
	}
	return node, err
}

func (r *txRepository) CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM code_nodes WHERE code=$1 AND id<>$2)`, code, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertNode(ctx context.Context, node CodeNode) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO code_nodes (parent_id, code, title, kind, is_active, nature)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, node.ParentID, node.Code, node.Title, node.Kind, node.IsActive, node.Nature).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateNode(ctx context.Context, node CodeNode) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE code_nodes SET parent_id=$2, code=$3, title=$4, is_active=$5, nature=$6, updated_at=NOW() WHERE id=$1`,
		node.ID, node.ParentID, node.Code, node.Title, node.IsActive, node.Nature)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *txRepository) DeleteNode(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM code_nodes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *txRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM code_nodes WHERE parent_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) NodeReferenced(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_items WHERE code_id=$1)
OR EXISTS (SELECT 1 FROM detail_links WHERE node_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	detail, err := scanDetail(r.tx.QueryRow(ctx, `SELECT `+detailColumns+` FROM details WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrDetailNotFound
	}
	return detail, err
}

func (r *txRepository) DetailCodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM details WHERE code=$1 AND id<>$2)`, code, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertDetail(ctx context.Context, detail Detail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO details (code, title, kind, is_active)
VALUES ($1,$2,$3,$4) RETURNING id`, detail.Code, detail.Title, detail.Kind, detail.IsActive).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateDetail(ctx context.Context, detail Detail) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE details SET code=$2, title=$3, is_active=$4, updated_at=NOW() WHERE id=$1`,
		detail.ID, detail.Code, detail.Title, detail.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (r *txRepository) DeleteDetail(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM details WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (r *txRepository) DetailReferenced(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_items WHERE detail_id=$1)
OR EXISTS (SELECT 1 FROM receipts WHERE detail_id=$1)
OR EXISTS (SELECT 1 FROM payments WHERE detail_id=$1)
OR EXISTS (SELECT 1 FROM checks WHERE beneficiary_detail_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) UsedDetailCodes(ctx context.Context) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT code FROM details ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *txRepository) InsertLink(ctx context.Context, link DetailLink) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO detail_links (detail_id, node_id, is_primary, position)
VALUES ($1,$2,$3,$4) RETURNING id`, link.DetailID, link.NodeID, link.IsPrimary, link.Position).Scan(&id)
	if db.IsUniqueViolation(err, "uq_detail_links_detail_node") {
		return 0, ErrLinkExists
	}
	return id, err
}

func (r *txRepository) DeleteLink(ctx context.Context, detailID, nodeID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM detail_links WHERE detail_id=$1 AND node_id=$2`, detailID, nodeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (r *txRepository) LinksForDetail(ctx context.Context, detailID int64) ([]DetailLink, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, detail_id, node_id, is_primary, position, created_at
FROM detail_links WHERE detail_id=$1 ORDER BY position, id`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []DetailLink
	for rows.Next() {
		var link DetailLink
		if err := rows.Scan(&link.ID, &link.DetailID, &link.NodeID, &link.IsPrimary, &link.Position, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
