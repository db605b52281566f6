// Package palette persists the named emoji collections the user picks
// emojis from.
package palette

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("palette: not found")
	ErrLastPalette = errors.New("palette: cannot remove every palette")
)

// Palette is a named run of emoji grapheme clusters.
type Palette struct {
	ID     uuid.UUID
	Name   string
	Emojis string
}

const schema = `
CREATE TABLE IF NOT EXISTS palettes (
	id       TEXT PRIMARY KEY,
	store    TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	emojis   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_palettes_store ON palettes(store, position);
`

// Store is an ordered list of palettes kept under one name in a SQLite
// database. Several stores can share a database file.
type Store struct {
	db     *sql.DB
	name   string
	logger *slog.Logger

	mu sync.Mutex
}

// Open opens (or creates) the database at path and the store called name
// inside it. An empty store is seeded with the built-in palettes.
func Open(path, name string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open palette db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, name: name, logger: logger}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Name() string { return s.name }

func (s *Store) seed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.load()
	if err != nil || len(ps) > 0 {
		return err
	}
	for _, d := range defaultPalettes {
		ps = append(ps, Palette{ID: uuid.New(), Name: d.name, Emojis: Dedupe(d.emojis)})
	}
	if err := s.save(ps); err != nil {
		return err
	}
	s.logger.Info("palette store seeded", "store", s.name, "palettes", len(ps))
	return nil
}

// Palettes returns every palette in display order.
func (s *Store) Palettes() ([]Palette, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Palette returns the palette at index, clamped into range.
func (s *Store) Palette(index int) (Palette, error) {
	ps, err := s.Palettes()
	if err != nil {
		return Palette{}, err
	}
	if len(ps) == 0 {
		return Palette{}, ErrNotFound
	}
	return ps[clamp(index, 0, len(ps)-1)], nil
}

// Insert adds a palette before position at (clamped) and returns it.
func (s *Store) Insert(name, emojis string, at int) (Palette, error) {
	p := Palette{ID: uuid.New(), Name: name, Emojis: Dedupe(emojis)}
	err := s.update(func(ps []Palette) ([]Palette, error) {
		at = clamp(at, 0, len(ps))
		ps = append(ps, Palette{})
		copy(ps[at+1:], ps[at:])
		ps[at] = p
		return ps, nil
	})
	return p, err
}

// Remove deletes the palette at index unless it is the only one, and
// returns the index of the palette to show next.
func (s *Store) Remove(index int) (int, error) {
	next := 0
	err := s.update(func(ps []Palette) ([]Palette, error) {
		if index < 0 || index >= len(ps) {
			return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
		}
		if len(ps) > 1 {
			ps = append(ps[:index], ps[index+1:]...)
		}
		next = index % len(ps)
		return ps, nil
	})
	return next, err
}

// RemoveAt deletes the palettes at the given indexes. Removing all of them
// fails with ErrLastPalette and changes nothing.
func (s *Store) RemoveAt(indexes []int) error {
	return s.update(func(ps []Palette) ([]Palette, error) {
		drop := make(map[int]bool, len(indexes))
		for _, i := range indexes {
			if i < 0 || i >= len(ps) {
				return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
			}
			drop[i] = true
		}
		if len(drop) == len(ps) {
			return nil, ErrLastPalette
		}
		kept := ps[:0]
		for i, p := range ps {
			if !drop[i] {
				kept = append(kept, p)
			}
		}
		return kept, nil
	})
}

// Move relocates the palettes at from so they sit before the palette that
// was at index to, keeping their relative order. to == len moves them to
// the end.
func (s *Store) Move(from []int, to int) error {
	return s.update(func(ps []Palette) ([]Palette, error) {
		to = clamp(to, 0, len(ps))
		idx := append([]int(nil), from...)
		sort.Ints(idx)
		moving := make([]Palette, 0, len(idx))
		picked := make(map[int]bool, len(idx))
		for _, i := range idx {
			if i < 0 || i >= len(ps) {
				return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
			}
			if picked[i] {
				continue
			}
			picked[i] = true
			moving = append(moving, ps[i])
		}

		var before, after []Palette
		for i, p := range ps {
			switch {
			case picked[i]:
			case i < to:
				before = append(before, p)
			default:
				after = append(after, p)
			}
		}
		out := make([]Palette, 0, len(ps))
		out = append(out, before...)
		out = append(out, moving...)
		return append(out, after...), nil
	})
}

func (s *Store) Rename(id uuid.UUID, name string) error {
	return s.edit(id, func(p *Palette) { p.Name = name })
}

// AddEmojis puts the new emojis in front of the palette's existing ones.
// Non-emoji characters and duplicates are dropped.
func (s *Store) AddEmojis(id uuid.UUID, emojis string) error {
	return s.edit(id, func(p *Palette) { p.Emojis = Dedupe(emojis + p.Emojis) })
}

func (s *Store) RemoveEmoji(id uuid.UUID, emoji string) error {
	return s.edit(id, func(p *Palette) {
		var kept []byte
		for _, g := range Graphemes(p.Emojis) {
			if g != emoji {
				kept = append(kept, g...)
			}
		}
		p.Emojis = string(kept)
	})
}

func (s *Store) edit(id uuid.UUID, fn func(*Palette)) error {
	return s.update(func(ps []Palette) ([]Palette, error) {
		for i := range ps {
			if ps[i].ID == id {
				fn(&ps[i])
				return ps, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
}

// update runs a read-modify-write of the whole ordered list.
func (s *Store) update(fn func([]Palette) ([]Palette, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.load()
	if err != nil {
		return err
	}
	ps, err = fn(ps)
	if err != nil {
		return err
	}
	return s.save(ps)
}

func (s *Store) load() ([]Palette, error) {
	rows, err := s.db.Query(`SELECT id, name, emojis FROM palettes WHERE store = ? ORDER BY position`, s.name)
	if err != nil {
		return nil, fmt.Errorf("query palettes: %w", err)
	}
	defer rows.Close()
	var ps []Palette
	for rows.Next() {
		var p Palette
		if err := rows.Scan(&p.ID, &p.Name, &p.Emojis); err != nil {
			return nil, fmt.Errorf("scan palette: %w", err)
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func (s *Store) save(ps []Palette) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM palettes WHERE store = ?`, s.name); err != nil {
		return fmt.Errorf("clear palettes: %w", err)
	}
	for i, p := range ps {
		if _, err := tx.Exec(`INSERT INTO palettes (id, store, position, name, emojis) VALUES (?, ?, ?, ?, ?)`,
			p.ID.String(), s.name, i, p.Name, p.Emojis); err != nil {
			return fmt.Errorf("insert palette %q: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
