package palette

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func names(t *testing.T, s *Store) []string {
	t.Helper()
	ps, err := s.Palettes()
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestOpen_SeedsDefaults(t *testing.T) {
	s := testStore(t)
	got := names(t, s)
	if len(got) != len(defaultPalettes) {
		t.Fatalf("palettes: got %d, want %d", len(got), len(defaultPalettes))
	}
	if got[0] != "Vehicles" || got[len(got)-1] != "Faces" {
		t.Errorf("order: %v", got)
	}
	ps, _ := s.Palettes()
	for _, p := range ps {
		if p.ID == uuid.Nil {
			t.Errorf("%s has no id", p.Name)
		}
		if Dedupe(p.Emojis) != p.Emojis {
			t.Errorf("%s has duplicate or non-emoji content", p.Name)
		}
	}
}

func TestOpen_PersistsPerStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palettes.db")
	a, err := Open(path, "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Insert("Mine", "🍕🍔", 0); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := Open(path, "b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(t, b); got[0] != "Vehicles" {
		t.Errorf("store b sees store a's palette: %v", got)
	}
	b.Close()

	a, err = Open(path, "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	got := names(t, a)
	if got[0] != "Mine" || len(got) != len(defaultPalettes)+1 {
		t.Errorf("reopened store a: %v", got)
	}
}

func TestPalette_ClampsIndex(t *testing.T) {
	s := testStore(t)
	for _, tc := range []struct {
		index int
		want  string
	}{
		{-3, "Vehicles"},
		{0, "Vehicles"},
		{2, "Music"},
		{100, "Faces"},
	} {
		p, err := s.Palette(tc.index)
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != tc.want {
			t.Errorf("Palette(%d) = %s, want %s", tc.index, p.Name, tc.want)
		}
	}
}

func TestInsert(t *testing.T) {
	s := testStore(t)
	p, err := s.Insert("Food", "🍕a🍔🍕", 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Emojis != "🍕🍔" {
		t.Errorf("emojis: %q", p.Emojis)
	}
	if got, _ := s.Palette(1); got.ID != p.ID {
		t.Errorf("inserted at wrong position: %s", got.Name)
	}
	s.Insert("Last", "🏁", 999)
	if got := names(t, s); got[len(got)-1] != "Last" {
		t.Errorf("insert past end: %v", got)
	}
}

func TestRemove(t *testing.T) {
	s := testStore(t)
	n := len(defaultPalettes)

	next, err := s.Remove(n - 1)
	if err != nil {
		t.Fatal(err)
	}
	if next != 0 {
		t.Errorf("removing the last position should wrap to 0, got %d", next)
	}

	next, _ = s.Remove(2)
	if next != 2 {
		t.Errorf("next: got %d, want 2", next)
	}

	if _, err := s.Remove(50); !errors.Is(err, ErrNotFound) {
		t.Errorf("out of range: %v", err)
	}

	for len(names(t, s)) > 1 {
		if _, err := s.Remove(0); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Remove(0); err != nil {
		t.Fatal(err)
	}
	if got := names(t, s); len(got) != 1 {
		t.Errorf("the only palette must survive, got %v", got)
	}
}

func TestRemoveAt(t *testing.T) {
	s := testStore(t)
	if err := s.RemoveAt([]int{0, 2}); err != nil {
		t.Fatal(err)
	}
	if got := names(t, s); got[0] != "Sports" || got[1] != "Animals" {
		t.Errorf("after RemoveAt: %v", got)
	}

	all := make([]int, len(names(t, s)))
	for i := range all {
		all[i] = i
	}
	if err := s.RemoveAt(all); !errors.Is(err, ErrLastPalette) {
		t.Errorf("removing all: %v", err)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name string
		from []int
		to   int
		want []string
	}{
		{"down", []int{0}, 3, []string{"Sports", "Music", "Vehicles", "Animals"}},
		{"up", []int{4, 5}, 0, []string{"Animal Faces", "Flora", "Vehicles", "Sports"}},
		{"in place", []int{1}, 1, []string{"Vehicles", "Sports", "Music", "Animals"}},
		{"to end", []int{0}, 9, []string{"Sports", "Music", "Animals", "Animal Faces"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testStore(t)
			if err := s.Move(tc.from, tc.to); err != nil {
				t.Fatal(err)
			}
			got := names(t, s)
			if !reflect.DeepEqual(got[:4], tc.want) {
				t.Errorf("got %v, want prefix %v", got, tc.want)
			}
			if len(got) != len(defaultPalettes) {
				t.Errorf("move changed count: %d", len(got))
			}
		})
	}
	t.Run("to end keeps tail", func(t *testing.T) {
		s := testStore(t)
		s.Move([]int{0}, 9)
		if got := names(t, s); got[len(got)-1] != "Vehicles" {
			t.Errorf("got %v", got)
		}
	})
}

func TestEditEmojis(t *testing.T) {
	s := testStore(t)
	p, _ := s.Insert("Mine", "🍕🍔", 0)

	if err := s.AddEmojis(p.ID, "🌮x🍔"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Palette(0)
	if got.Emojis != "🌮🍔🍕" {
		t.Errorf("after add: %q", got.Emojis)
	}

	if err := s.RemoveEmoji(p.ID, "🍔"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Palette(0)
	if got.Emojis != "🌮🍕" {
		t.Errorf("after remove: %q", got.Emojis)
	}

	if err := s.Rename(p.ID, "Food"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Palette(0); got.Name != "Food" {
		t.Errorf("rename: %q", got.Name)
	}

	if err := s.Rename(uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}
