// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package boarddb holds types to retrieve per-board condition data
// (network address, pixel-calibration offsets) for the photon-counting
// array from the condition database.
package boarddb // import "github.com/mstrader/MkidDigitalReadout/boarddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// BoardInfo is the condition data recorded for one readout board.
type BoardInfo struct {
	Roach   uint8
	Addr    string
	XOffset int
	YOffset int
}

// DB exposes convenience methods to retrieve board condition data from
// the detector's condition database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the condition database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("boarddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("boarddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("boarddb: could not ping %q db: %w", dbname, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// QueryContext runs an arbitrary query against the condition database.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// AllBoards returns the condition data for every board known to the
// database, keyed by roach ID.
func (db *DB) AllBoards(ctx context.Context) (map[uint8]BoardInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, "SELECT roach, addr, x_offset, y_offset FROM boards")
	if err != nil {
		return nil, fmt.Errorf("boarddb: could not query boards: %w", err)
	}
	defer rows.Close()

	out := make(map[uint8]BoardInfo)
	for rows.Next() {
		var b BoardInfo
		err = rows.Scan(&b.Roach, &b.Addr, &b.XOffset, &b.YOffset)
		if err != nil {
			return nil, fmt.Errorf("boarddb: could not scan board row: %w", err)
		}
		out[b.Roach] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boarddb: could not iterate board rows: %w", err)
	}
	return out, nil
}
