package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLSTATE codes treated as lock contention.
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Each unit of work runs under an operation deadline and, on postgres, a
// transaction-local lock_timeout, so a blocked writer gives up instead of
// queueing forever.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
	opTimeout   time.Duration
	logger      *zap.Logger
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithLockTimeout bounds the wait for a single row lock
func WithLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// WithOperationTimeout bounds the whole unit of work
func WithOperationTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.opTimeout = d
	}
}

// WithScopeLogger sets the logger used for contention and connection failures
func WithScopeLogger(l *zap.Logger) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{
		db:          db,
		lockTimeout: 2 * time.Second,
		opTimeout:   5 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction. If fn returns an error the
// transaction is rolled back. Store failures are translated into
// *inventory.ResourceBusyError or *inventory.StoreUnavailableError.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos appinv.TransactionalRepositories) error) error {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			// SET does not accept bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(ctx, &gormTransactionalRepositories{tx: tx})
	})
	if err == nil {
		return nil
	}

	translated := translateStoreError(ctx, "transaction", err)
	switch translated.(type) {
	case *inventory.ResourceBusyError:
		s.logger.Warn("transaction gave up waiting for locks", zap.Error(err))
	case *inventory.StoreUnavailableError:
		s.logger.Error("store unavailable", zap.Error(err))
	}
	return translated
}

// translateStoreError maps driver and context failures onto the stock error
// taxonomy. Domain errors pass through untouched.
func translateStoreError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var coded inventory.CodedError
	if errors.As(err, &coded) {
		return err
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &inventory.ResourceBusyError{Resource: "product stock", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateLockNotAvailable, sqlStateQueryCanceled, sqlStateDeadlockDetected, sqlStateSerializationFailure:
			return &inventory.ResourceBusyError{Resource: "product stock", Err: err}
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return &inventory.StoreUnavailableError{Op: op, Err: err}
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return &inventory.StoreUnavailableError{Op: op, Err: err}
	}

	// sqlite reports writer contention as SQLITE_BUSY
	if strings.Contains(err.Error(), "database is locked") {
		return &inventory.ResourceBusyError{Resource: "product stock", Err: err}
	}

	return err
}

// gormTransactionalRepositories provides access to all repositories bound to one *gorm.DB,
// either a transaction or the root connection for reads.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// NewGormRepositories binds the ledger repositories to db outside any transaction
func NewGormRepositories(db *gorm.DB) appinv.TransactionalRepositories {
	return &gormTransactionalRepositories{tx: db}
}

func (r *gormTransactionalRepositories) Locations() inventory.LocationRepository {
	return NewGormLocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Placements() inventory.PlacementRepository {
	return NewGormPlacementRepository(r.tx)
}

func (r *gormTransactionalRepositories) Batches() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) Cells() inventory.LocationCellRepository {
	return NewGormLocationCellRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) Profiles() inventory.StockProfileRepository {
	return NewGormStockProfileRepository(r.tx)
}

func (r *gormTransactionalRepositories) Alerts() inventory.ReorderAlertRepository {
	return NewGormReorderAlertRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
