package uploader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gagliardetto/solana-go"
)

// dedupSet tracks every PDA already shipped to the registry, persisted as
// concatenated raw 32-byte keys so restarts do not re-upload old entries.
type dedupSet struct {
	set map[solana.PublicKey]struct{}
}

func loadDedupSet(path string) (*dedupSet, error) {
	s := &dedupSet{set: make(map[solana.PublicKey]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dedup set: %w", err)
	}
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("dedup set %s is corrupt: %d bytes is not a multiple of 32", path, len(data))
	}

	for off := 0; off < len(data); off += 32 {
		s.set[solana.PublicKeyFromBytes(data[off:off+32])] = struct{}{}
	}
	return s, nil
}

func (s *dedupSet) Contains(pk solana.PublicKey) bool {
	_, ok := s.set[pk]
	return ok
}

func (s *dedupSet) Add(pk solana.PublicKey) {
	s.set[pk] = struct{}{}
}

func (s *dedupSet) Len() int {
	return len(s.set)
}

// Save writes the set atomically via a temp file rename.
func (s *dedupSet) Save(path string) error {
	data := make([]byte, 0, len(s.set)*32)
	for pk := range s.set {
		data = append(data, pk[:]...)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dedup set: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace dedup set: %w", err)
	}
	return nil
}
