package errorhandler

import "fmt"

// Transactions is the database layer as seen by the pipeline.
type Transactions interface {
	HasUncommittedChanges() (bool, error)
	RollbackAll() error
}

// TransactionError is a failure of the database layer while the pipeline
// was cleaning up after another error.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// RollbackAndLog rolls back uncommitted work left behind by e, logging a
// warning on the txhazard channel first. A failing database layer is
// returned as a *TransactionError for the caller to log; it is never raised.
func (p *Pipeline) RollbackAndLog(e *RaisedError) (txErr error) {
	if p.tx == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			txErr = &TransactionError{Op: "rollback", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dirty, err := p.tx.HasUncommittedChanges()
	if err != nil {
		return &TransactionError{Op: "inspect", Err: err}
	}
	if !dirty {
		return nil
	}

	p.loggers.GetLogger(ChannelTxHazard).Warning(
		"Error raised with an uncommitted database transaction: "+p.LogMessage(e),
		logContext(e),
	)
	if err := p.tx.RollbackAll(); err != nil {
		return &TransactionError{Op: "rollback", Err: err}
	}
	return nil
}
