package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// TxManager tracks explicit transactions so the error pipeline can find and
// roll back work left open when a request fails. RollbackAll reaches every
// transaction the manager registered, so a server handling requests
// concurrently gives each request its own manager and binds it with
// errorhandler.WithTransactions on the request's pipeline.
type TxManager struct {
	db *gorm.DB

	mu   sync.Mutex
	open map[*Tx]struct{}
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db, open: make(map[*Tx]struct{})}
}

// Tx is a registered transaction. Writes made through it mark it dirty.
type Tx struct {
	db      *gorm.DB
	manager *TxManager

	mu    sync.Mutex
	dirty bool
}

// Begin opens a transaction and registers it with the manager.
func (m *TxManager) Begin(ctx context.Context) (*Tx, error) {
	db := m.db.WithContext(ctx).Begin()
	if db.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", db.Error)
	}

	tx := &Tx{db: db, manager: m}
	m.mu.Lock()
	m.open[tx] = struct{}{}
	m.mu.Unlock()
	return tx, nil
}

// Transaction runs fn inside a registered transaction, committing on success
// and rolling back on error. A panic in fn leaves the transaction open for
// RollbackAll.
func (m *TxManager) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// HasUncommittedChanges reports whether any open transaction has written.
func (m *TxManager) HasUncommittedChanges() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tx := range m.open {
		if tx.isDirty() {
			return true, nil
		}
	}
	return false, nil
}

// RollbackAll rolls back every open transaction registered with m.
// Transactions of other managers on the same database are left alone.
func (m *TxManager) RollbackAll() error {
	m.mu.Lock()
	open := make([]*Tx, 0, len(m.open))
	for tx := range m.open {
		open = append(open, tx)
	}
	m.mu.Unlock()

	var errs []error
	for _, tx := range open {
		if err := tx.Rollback(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open returns the number of registered transactions.
func (m *TxManager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

func (m *TxManager) release(tx *Tx) {
	m.mu.Lock()
	delete(m.open, tx)
	m.mu.Unlock()
}

// DB exposes the transaction for reads.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

// Delete removes rows matching conds and returns how many went.
func (t *Tx) Delete(value interface{}, conds ...interface{}) (int64, error) {
	t.markDirty()
	res := t.db.Delete(value, conds...)
	return res.RowsAffected, res.Error
}

func (t *Tx) Commit() error {
	defer t.manager.release(t)
	if err := t.db.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	defer t.manager.release(t)
	if err := t.db.Rollback().Error; err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (t *Tx) markDirty() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}

func (t *Tx) isDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}
