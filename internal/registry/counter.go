package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

// NextSend implements protocol.CounterStore. The send counter is incremented
// inside a transaction, wrapping 65535 to 0.
func (s *Store) NextSend(ctx context.Context, address string) (uint16, error) {
	mac := s.resolve(ctx, address)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin counter: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO devicecounter(mac_address) VALUES (?) ON CONFLICT(mac_address) DO NOTHING`, mac); err != nil {
		return 0, fmt.Errorf("seed counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE devicecounter SET send = (send + 1) % 65536 WHERE mac_address = ?`, mac); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	var v int64
	if err := tx.QueryRowContext(ctx,
		`SELECT send FROM devicecounter WHERE mac_address = ?`, mac).Scan(&v); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit counter: %w", err)
	}
	return uint16(v), nil
}

// Current implements protocol.CounterStore. A device without a row reads as
// zero.
func (s *Store) Current(ctx context.Context, address string) (protocol.CounterState, error) {
	var send, receive int64
	err := s.db.QueryRowContext(ctx,
		`SELECT send, receive FROM devicecounter WHERE mac_address = ?`,
		s.resolve(ctx, address)).Scan(&send, &receive)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.CounterState{}, nil
	}
	if err != nil {
		return protocol.CounterState{}, fmt.Errorf("query counter: %w", err)
	}
	return protocol.CounterState{Send: uint16(send), Receive: uint16(receive)}, nil
}

// SetReceiveCounter implements protocol.Registry. The send counter of the
// device is left alone.
func (s *Store) SetReceiveCounter(ctx context.Context, address string, counter uint16) error {
	return s.exec(ctx, "set receive counter", `
		INSERT INTO devicecounter(mac_address, receive) VALUES (?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET receive = excluded.receive
	`, s.resolve(ctx, address), int64(counter))
}
