package store

import (
	"context"
	"errors"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

//go:generate mockgen -destination=mocks/mock_revision_store.go -package=mocks . RevisionStore

var (
	// ErrNotFound is returned by FetchOne when the revision does not exist.
	ErrNotFound = errors.New("revision not found")

	// ErrUnavailable marks failures to reach the revision store.
	ErrUnavailable = errors.New("revision store unavailable")
)

// RevisionStore provides read access to page histories.
type RevisionStore interface {
	// FetchOne returns a single revision or ErrNotFound.
	FetchOne(ctx context.Context, revID int64) (model.Revision, error)

	// FetchOlder returns up to limit revisions of the page with ID < beforeID,
	// newest first.
	FetchOlder(ctx context.Context, pageID, beforeID int64, limit int) ([]model.Revision, error)

	// FetchNewer returns up to limit revisions of the page with ID > afterID
	// and a timestamp not after notAfter, oldest first.
	FetchNewer(ctx context.Context, pageID, afterID int64, limit int, notAfter time.Time) ([]model.Revision, error)
}
