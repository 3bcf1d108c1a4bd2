package repository

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func orders(t *testing.T, r *Repo, guild string) []string {
	t.Helper()
	entries, err := r.PeekFront(context.Background(), guild, 0)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	titles := make([]string, len(entries))
	for i, e := range entries {
		if e.Order != i {
			t.Fatalf("entry %d has order %d; orders must be contiguous from 0", i, e.Order)
		}
		titles[i] = e.Request.Video.Title
	}
	return titles
}

func TestPushBackAndAdvance(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	ids := seedRequests(t, r, "g1", "a", "b", "c")

	for _, id := range ids {
		if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if got := orders(t, r, "g1"); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("queue = %v", got)
	}

	for _, tc := range []struct {
		wantShifted int
		wantQueue   []string
	}{
		{2, []string{"b", "c"}},
		{1, []string{"c"}},
		{0, []string{}},
		{0, []string{}},
	} {
		n, err := r.Advance(ctx, "g1")
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if n != tc.wantShifted {
			t.Errorf("shifted = %d, want %d", n, tc.wantShifted)
		}
		if got := orders(t, r, "g1"); !slices.Equal(got, tc.wantQueue) {
			t.Errorf("queue = %v, want %v", got, tc.wantQueue)
		}
	}
}

func TestAdvanceDropsStrayNegativeRows(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	ids := seedRequests(t, r, "g1", "a", "b", "stray")
	for _, id := range ids[:2] {
		if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO queue(id, guild_id, request_id, ord) VALUES ('q-stray', 'g1', ?, -3)`, ids[2],
	); err != nil {
		t.Fatalf("insert stray: %v", err)
	}

	n, err := r.Advance(ctx, "g1")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if n != 1 {
		t.Errorf("shifted = %d, want 1", n)
	}
	var below int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue WHERE guild_id = 'g1' AND ord < 0`).Scan(&below); err != nil {
		t.Fatalf("count: %v", err)
	}
	if below != 0 {
		t.Errorf("%d rows left below order 0", below)
	}
	if got := orders(t, r, "g1"); !slices.Equal(got, []string{"b"}) {
		t.Errorf("queue = %v, want [b]", got)
	}
}

func TestPushBackInterrupt(t *testing.T) {
	tests := []struct {
		name    string
		queued  int
		want    []string
		wantOrd int
	}{
		{"empty queue goes to front", 0, []string{"x"}, 0},
		{"behind single front", 1, []string{"a", "x"}, 1},
		{"behind front ahead of rest", 3, []string{"a", "x", "b", "c"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRepo(t)
			ids := seedRequests(t, r, "g1", "a", "b", "c", "x")
			for _, id := range ids[:tt.queued] {
				if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
					t.Fatalf("push: %v", err)
				}
			}
			e, err := r.PushBack(ctx, "g1", ids[3], true)
			if err != nil {
				t.Fatalf("interrupt push: %v", err)
			}
			if e.Order != tt.wantOrd {
				t.Errorf("order = %d, want %d", e.Order, tt.wantOrd)
			}
			if got := orders(t, r, "g1"); !slices.Equal(got, tt.want) {
				t.Errorf("queue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPushBackUnknownRequest(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	ids := seedRequests(t, r, "g1", "a")
	seedRequests(t, r, "g2")

	if _, err := r.PushBack(ctx, "g1", "missing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown request: got %v, want ErrNotFound", err)
	}
	if _, err := r.PushBack(ctx, "g2", ids[0], false); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign request: got %v, want ErrNotFound", err)
	}
}

func TestQueuesAreIsolatedPerGuild(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	a := seedRequests(t, r, "g1", "a1", "a2")
	b := seedRequests(t, r, "g2", "b1")

	for _, id := range a {
		if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.PushBack(ctx, "g2", b[0], false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Advance(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if got := orders(t, r, "g1"); !slices.Equal(got, []string{"a2"}) {
		t.Errorf("g1 = %v", got)
	}
	if got := orders(t, r, "g2"); !slices.Equal(got, []string{"b1"}) {
		t.Errorf("g2 = %v", got)
	}
}

func TestRemoveAt(t *testing.T) {
	tests := []struct {
		name string
		ord  int
		want []string
		err  error
	}{
		{"front", 0, []string{"b", "c", "d"}, nil},
		{"middle", 2, []string{"a", "b", "d"}, nil},
		{"last", 3, []string{"a", "b", "c"}, nil},
		{"out of range", 4, []string{"a", "b", "c", "d"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRepo(t)
			for _, id := range seedRequests(t, r, "g1", "a", "b", "c", "d") {
				if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
					t.Fatal(err)
				}
			}
			_, err := r.RemoveAt(ctx, "g1", tt.ord)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got := orders(t, r, "g1"); !slices.Equal(got, tt.want) {
				t.Errorf("queue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClear(t *testing.T) {
	for _, keep := range []bool{false, true} {
		ctx := context.Background()
		r := newTestRepo(t)
		for _, id := range seedRequests(t, r, "g1", "a", "b", "c") {
			if _, err := r.PushBack(ctx, "g1", id, false); err != nil {
				t.Fatal(err)
			}
		}
		n, err := r.Clear(ctx, "g1", keep)
		if err != nil {
			t.Fatalf("clear: %v", err)
		}
		want, wantQueue := 3, []string{}
		if keep {
			want, wantQueue = 2, []string{"a"}
		}
		if n != want {
			t.Errorf("keepFront=%v removed %d, want %d", keep, n, want)
		}
		if got := orders(t, r, "g1"); !slices.Equal(got, wantQueue) {
			t.Errorf("keepFront=%v queue = %v, want %v", keep, got, wantQueue)
		}
	}
}
