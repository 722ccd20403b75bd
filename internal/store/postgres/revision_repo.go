package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/store"
)

const revisionColumns = `rev_id, rev_page, rev_timestamp, rev_sha1`

// dbtx is satisfied by *sql.DB and *DB.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RevisionRepo reads page histories from the revision table.
type RevisionRepo struct {
	db      dbtx
	timeout time.Duration
}

var _ store.RevisionStore = (*RevisionRepo)(nil)

func NewRevisionRepo(db dbtx) *RevisionRepo {
	return &RevisionRepo{db: db, timeout: DefaultQueryTimeout}
}

func (r *RevisionRepo) FetchOne(ctx context.Context, revID int64) (model.Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revision
		WHERE rev_id = $1
	`, revID)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Revision{}, fmt.Errorf("revision %d: %w", revID, store.ErrNotFound)
	}
	if err != nil {
		return model.Revision{}, fmt.Errorf("get revision %d: %w", revID, err)
	}
	return rev, nil
}

func (r *RevisionRepo) FetchOlder(ctx context.Context, pageID, beforeID int64, limit int) ([]model.Revision, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revision
		WHERE rev_page = $1 AND rev_id < $2
		ORDER BY rev_id DESC
		LIMIT $3
	`, pageID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query older revisions page=%d before=%d: %w", pageID, beforeID, err)
	}
	return collectRevisions(rows, limit)
}

func (r *RevisionRepo) FetchNewer(ctx context.Context, pageID, afterID int64, limit int, notAfter time.Time) ([]model.Revision, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revision
		WHERE rev_page = $1 AND rev_id > $2 AND rev_timestamp <= $3
		ORDER BY rev_id ASC
		LIMIT $4
	`, pageID, afterID, notAfter.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query newer revisions page=%d after=%d: %w", pageID, afterID, err)
	}
	return collectRevisions(rows, limit)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (model.Revision, error) {
	var (
		rev  model.Revision
		sha1 sql.NullString
	)
	if err := row.Scan(&rev.ID, &rev.PageID, &rev.Timestamp, &sha1); err != nil {
		return model.Revision{}, err
	}
	if sha1.Valid {
		rev.Fingerprint = model.NewFingerprint(sha1.String)
	}
	rev.Timestamp = rev.Timestamp.UTC()
	return rev, nil
}

func collectRevisions(rows *sql.Rows, capacity int) ([]model.Revision, error) {
	defer rows.Close()

	revs := make([]model.Revision, 0, capacity)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revs, nil
}

// upsertChunk keeps each statement well below the 65535 bind parameter limit.
const upsertChunk = 1000

// BulkUpsert writes revisions in a single transaction, one multi-row INSERT
// per chunk. Existing rows are overwritten, which makes re-importing a
// history export idempotent. A rev_id repeated in revs keeps its last row.
func (r *RevisionRepo) BulkUpsert(ctx context.Context, revs []model.Revision) (int, error) {
	if len(revs) == 0 {
		return 0, nil
	}
	revs = lastByID(revs)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin revision upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for start := 0; start < len(revs); start += upsertChunk {
		chunk := revs[start:min(start+upsertChunk, len(revs))]
		query, args := buildUpsert(chunk)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert revisions %d..%d: %w", chunk[0].ID, chunk[len(chunk)-1].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit revision upsert: %w", err)
	}
	return len(revs), nil
}

func buildUpsert(revs []model.Revision) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(revs)*4)
	b.WriteString("INSERT INTO revision (" + revisionColumns + ") VALUES ")
	for i, rev := range revs {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)

		var sha1 sql.NullString
		if digest, ok := rev.Fingerprint.Digest(); ok {
			sha1 = sql.NullString{String: digest, Valid: true}
		}
		args = append(args, rev.ID, rev.PageID, rev.Timestamp.UTC(), sha1)
	}
	b.WriteString(` ON CONFLICT (rev_id) DO UPDATE SET
		rev_page = EXCLUDED.rev_page,
		rev_timestamp = EXCLUDED.rev_timestamp,
		rev_sha1 = EXCLUDED.rev_sha1`)
	return b.String(), args
}

// lastByID drops earlier duplicates; Postgres rejects a statement that
// touches the same conflict key twice.
func lastByID(revs []model.Revision) []model.Revision {
	index := make(map[int64]int, len(revs))
	out := make([]model.Revision, 0, len(revs))
	for _, rev := range revs {
		if i, ok := index[rev.ID]; ok {
			out[i] = rev
			continue
		}
		index[rev.ID] = len(out)
		out = append(out, rev)
	}
	return out
}
