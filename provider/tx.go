package provider

import (
	"context"
	"fmt"
)

// BeginTransaction starts a transaction on the dedicated connection. If one is
// already active it's reused, and the nesting depth is incremented.
func (p *Provider) BeginTransaction(ctx context.Context) error {
	if p.tx != nil {
		p.txDepth++
		p.logger.Debug("joined transaction", "depth", p.txDepth)
		return nil
	}

	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed starting transaction: %w", err)
	}
	p.tx = tx
	p.txDepth = 1
	p.logger.Debug("started transaction")

	return nil
}

// Commit ends the innermost transaction scope. The transaction is committed
// when the outermost scope ends, unless a nested scope rolled back, in which
// case it's rolled back and ErrRollbackOnly is returned.
func (p *Provider) Commit(_ context.Context) error {
	if p.tx == nil {
		return ErrNoTransaction
	}
	if p.txDepth > 1 {
		p.txDepth--
		return nil
	}

	tx, rollbackOnly := p.tx, p.rollbackOnly
	p.resetTx()

	if rollbackOnly {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("failed rolling back transaction: %w", err)
		}
		p.logger.Debug("rolled back rollback-only transaction")
		return ErrRollbackOnly
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed committing transaction: %w", err)
	}
	p.logger.Debug("committed transaction")

	return nil
}

// Rollback ends the innermost transaction scope. A nested rollback only marks
// the transaction as rollback-only; the outermost one rolls it back.
func (p *Provider) Rollback(_ context.Context) error {
	if p.tx == nil {
		return ErrNoTransaction
	}
	if p.txDepth > 1 {
		p.txDepth--
		p.rollbackOnly = true
		p.logger.Debug("marked transaction rollback-only", "depth", p.txDepth)
		return nil
	}

	tx := p.tx
	p.resetTx()
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed rolling back transaction: %w", err)
	}
	p.logger.Debug("rolled back transaction")

	return nil
}

// InTransaction reports whether a transaction is active.
func (p *Provider) InTransaction() bool {
	return p.tx != nil
}

func (p *Provider) resetTx() {
	p.tx = nil
	p.txDepth = 0
	p.rollbackOnly = false
}
