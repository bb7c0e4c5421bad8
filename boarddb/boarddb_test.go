// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boarddb

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/mstrader/MkidDigitalReadout/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open boarddb: %+v", err)
	}
	defer db.Close()
}

func TestAllBoards(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open boarddb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"roach", "addr", "x_offset", "y_offset"},
		Values: [][]driver.Value{
			{uint8(3), "10.0.0.3:50000", int64(-2), int64(1)},
		},
	}, func(ctx context.Context) error {
		boards, err := db.AllBoards(ctx)
		if err != nil {
			t.Fatalf("could not retrieve boards: %+v", err)
		}
		if got, want := len(boards), 1; got != want {
			t.Fatalf("board count: got=%d, want=%d", got, want)
		}
		b, ok := boards[3]
		if !ok {
			t.Fatalf("missing board roach=3")
		}
		if got, want := b.Addr, "10.0.0.3:50000"; got != want {
			t.Fatalf("addr: got=%q, want=%q", got, want)
		}
		if got, want := b.XOffset, -2; got != want {
			t.Fatalf("x_offset: got=%d, want=%d", got, want)
		}
		return nil
	})
}
