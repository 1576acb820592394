package gateway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bidmaster/auction-api/internal/types"
)

var (
	// ErrConflict means the commit's base snapshot version is stale: another
	// writer committed first. The caller must re-fetch and retry.
	ErrConflict = errors.New("snapshot version conflict")

	// ErrPersistenceFailure wraps storage errors surfaced to callers that
	// treat the gateway as an opaque collaborator.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// snapshotMeta is the single-row table holding the monotonic snapshot version.
type snapshotMeta struct {
	gorm.Model
	Version int64
}

// Gateway owns the whole application aggregate. Every read assembles the full
// snapshot; every write replaces it wholesale inside one transaction, guarded
// by the version counter.
type Gateway struct {
	db           *gorm.DB
	logRetention int

	mu       sync.Mutex
	fallback *types.Snapshot // last snapshot known good, served when storage reads fail
}

// New opens the sqlite database at dsn, migrates the schema, seeds the fixed
// bootstrap records when the store is empty, and returns a ready gateway.
func New(dsn string, logRetention int) (*Gateway, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&snapshotMeta{},
		&types.User{},
		&types.BiddingItem{},
		&types.BidRecord{},
		&types.LogRecord{},
		&types.Winner{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	g := &Gateway{db: db, logRetention: logRetention}
	if err := g.seed(); err != nil {
		return nil, fmt.Errorf("seed bootstrap records: %w", err)
	}
	return g, nil
}

// Fetch assembles the current snapshot. On a storage failure it falls back to
// the last snapshot it successfully read or committed, if any.
func (g *Gateway) Fetch() (*types.Snapshot, error) {
	snap, err := g.read()
	if err != nil {
		g.mu.Lock()
		cached := g.fallback
		g.mu.Unlock()
		if cached != nil {
			log.Warn().Err(err).Msg("snapshot read failed, serving last known state")
			return cached.Clone(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	g.mu.Lock()
	g.fallback = snap.Clone()
	g.mu.Unlock()
	return snap, nil
}

func (g *Gateway) read() (*types.Snapshot, error) {
	snap := &types.Snapshot{}
	err := g.db.Transaction(func(tx *gorm.DB) error {
		var meta snapshotMeta
		if err := tx.First(&meta).Error; err != nil {
			return err
		}
		snap.Version = meta.Version

		if err := tx.Order("user_id ASC").Find(&snap.Users).Error; err != nil {
			return err
		}
		if err := tx.Order("item_id ASC").Find(&snap.Items).Error; err != nil {
			return err
		}
		if err := tx.Order("timestamp DESC, id DESC").Find(&snap.Bids).Error; err != nil {
			return err
		}
		if err := tx.Order("timestamp DESC, id DESC").Find(&snap.Logs).Error; err != nil {
			return err
		}
		return tx.Order("awarded_at ASC").Find(&snap.Winners).Error
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit persists the snapshot wholesale. The write is rejected with
// ErrConflict when snap.Version no longer matches the stored version, so a
// stale writer can never silently overwrite a newer state. There is no
// partial application: any error rolls the transaction back.
func (g *Gateway) Commit(snap *types.Snapshot) error {
	trimLogs(snap, g.logRetention)

	err := g.db.Transaction(func(tx *gorm.DB) error {
		var meta snapshotMeta
		if err := tx.First(&meta).Error; err != nil {
			return err
		}
		if meta.Version != snap.Version {
			return ErrConflict
		}

		// Unscoped: rows must go away outright. A soft delete would leave the
		// unique business ids occupied and the re-insert below would collide.
		for _, model := range []interface{}{
			&types.User{}, &types.BiddingItem{}, &types.BidRecord{},
			&types.LogRecord{}, &types.Winner{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return err
			}
		}

		if err := createAll(tx, snap); err != nil {
			return err
		}

		meta.Version++
		return tx.Save(&meta).Error
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	snap.Version++
	g.mu.Lock()
	g.fallback = snap.Clone()
	g.mu.Unlock()
	return nil
}

func createAll(tx *gorm.DB, snap *types.Snapshot) error {
	for i := range snap.Users {
		snap.Users[i].Model = gorm.Model{}
		if err := tx.Create(&snap.Users[i]).Error; err != nil {
			return err
		}
	}
	for i := range snap.Items {
		snap.Items[i].Model = gorm.Model{}
		if err := tx.Create(&snap.Items[i]).Error; err != nil {
			return err
		}
	}
	// Bids and logs are held newest-first; insert oldest-first so row ids
	// preserve chronological order for the read-side sort.
	for i := len(snap.Bids) - 1; i >= 0; i-- {
		snap.Bids[i].Model = gorm.Model{}
		if err := tx.Create(&snap.Bids[i]).Error; err != nil {
			return err
		}
	}
	for i := len(snap.Logs) - 1; i >= 0; i-- {
		snap.Logs[i].Model = gorm.Model{}
		if err := tx.Create(&snap.Logs[i]).Error; err != nil {
			return err
		}
	}
	for i := range snap.Winners {
		snap.Winners[i].Model = gorm.Model{}
		if err := tx.Create(&snap.Winners[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// AppendLog is the fetch-append-commit convenience used by callers that only
// need to add an audit entry. Retention trimming happens on commit.
func (g *Gateway) AppendLog(entry types.LogRecord) error {
	snap, err := g.Fetch()
	if err != nil {
		return err
	}
	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	snap.Logs = append([]types.LogRecord{entry}, snap.Logs...)
	return g.Commit(snap)
}

// trimLogs drops the oldest entries beyond the retention cap. Logs are
// ordered newest-first, so the tail is the oldest.
func trimLogs(snap *types.Snapshot, retention int) {
	if retention > 0 && len(snap.Logs) > retention {
		snap.Logs = snap.Logs[:retention]
	}
}
