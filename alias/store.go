// Package alias owns the on-disk club alias table: a single JSON object mapping
// club identifier strings to display names. The table is read once at startup,
// appended to when an opponent is first discovered, and rewritten wholesale on
// every append. A mutex serializes writers; last writer wins.
package alias

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/stimodev/stimobot/telemetry"
)

// Entry is one id -> display-name mapping.
type Entry struct {
	ClubID string
	Name   string
}

// Store holds the alias table in insertion order. Lookup scans in that order so
// the first-added alias wins when two clubs share a normalized name.
type Store struct {
	path string

	mu      sync.RWMutex
	entries []Entry
	index   map[string]int // club id -> position in entries
}

// Load reads the alias file at path. A missing file yields an empty store; a
// malformed file is an error so a corrupt table isn't silently overwritten.
func Load(path string) (*Store, error) {
	s := &Store{path: path, index: make(map[string]int)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("alias: read %s: %w", path, err)
	}
	entries, err := decodeOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("alias: parse %s: %w", path, err)
	}
	for _, e := range entries {
		if _, dup := s.index[e.ClubID]; dup {
			continue
		}
		s.index[e.ClubID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// decodeOrdered parses a JSON object preserving key order. encoding/json maps
// lose ordering, so the token stream is walked directly.
func decodeOrdered(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}
	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		if key == "" || val == "" {
			continue
		}
		entries = append(entries, Entry{ClubID: key, Name: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Normalize lower-cases a club name and strips all whitespace, matching the
// form queries are compared in.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup returns the club id whose alias matches the normalized query, scanning
// in insertion order and short-circuiting on the first hit.
func (s *Store) Lookup(normalized string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if Normalize(e.Name) == normalized {
			return e, true
		}
	}
	return Entry{}, false
}

// Get returns the display name stored for a club id.
func (s *Store) Get(clubID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[clubID]; ok {
		return s.entries[i].Name, true
	}
	return "", false
}

// Len returns the number of stored aliases.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Put records a newly discovered id -> name mapping and rewrites the whole
// table to disk. Existing ids are never renamed; the call is a no-op for them.
func (s *Store) Put(clubID, name string) error {
	if clubID == "" || name == "" {
		return fmt.Errorf("alias: refusing empty id or name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[clubID]; ok {
		return nil
	}
	s.index[clubID] = len(s.entries)
	s.entries = append(s.entries, Entry{ClubID: clubID, Name: name})
	if err := s.persistLocked(); err != nil {
		return err
	}
	if telemetry.AliasesDiscovered != nil {
		telemetry.AliasesDiscovered.Inc()
	}
	return nil
}

// persistLocked writes the full table as an ordered JSON object. Caller holds mu.
func (s *Store) persistLocked() error {
	var b strings.Builder
	b.WriteString("{\n")
	for i, e := range s.entries {
		k, _ := json.Marshal(e.ClubID)
		v, _ := json.Marshal(e.Name)
		b.Write(k)
		b.WriteString(": ")
		b.Write(v)
		if i < len(s.entries)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("alias: write %s: %w", s.path, err)
	}
	return nil
}
