package uploader

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	collectorPrefix = "pda_collector_"
	collectorSuffix = ".blob"

	// Collectors write blob files in place; skip anything younger than this
	// in case a write is still in flight.
	minBlobAge = 5 * time.Second
)

// MergeResult carries the deduplicated batch and the source files it came
// from. Files are deleted by the caller only after a successful load.
type MergeResult struct {
	Entries []Entry
	Files   []string
}

// Merge reads every settled collector blob under dir, sorts and deduplicates
// the entries, and filters out anything already recorded in the persisted
// dedup set at dedupPath. With verify set, entries whose PDA does not
// re-derive from their program id and seeds are dropped.
func Merge(log *slog.Logger, clock clockwork.Clock, dir, dedupPath string, verify bool) (*MergeResult, error) {
	files, err := collectorFiles(clock, dir)
	if err != nil {
		return nil, err
	}
	log.Info("found collector files", "count", len(files), "dir", dir)

	var entries []Entry
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		decoded, err := DecodeEntries(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", file, err)
		}
		entries = append(entries, decoded...)
	}
	initial := len(entries)

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].PDA[:], entries[j].PDA[:]) < 0
	})
	entries = dedupSorted(entries)
	batchDeduped := initial - len(entries)

	dedup, err := loadDedupSet(dedupPath)
	if err != nil {
		return nil, err
	}

	fresh := entries[:0]
	for _, e := range entries {
		if dedup.Contains(e.PDA) {
			continue
		}
		fresh = append(fresh, e)
	}
	setDeduped := len(entries) - len(fresh)
	entries = fresh

	if verify {
		kept := entries[:0]
		for _, e := range entries {
			if !e.VerifyDerivation() {
				log.Warn("dropping entry that fails derivation check", "pda", e.PDA.String(), "program_id", e.ProgramID.String())
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	for _, e := range entries {
		dedup.Add(e.PDA)
	}
	if err := dedup.Save(dedupPath); err != nil {
		return nil, err
	}

	log.Info("merged collector files",
		"files", len(files),
		"batch_deduped", batchDeduped,
		"set_deduped", setDeduped,
		"new_entries", len(entries),
		"known_total", dedup.Len(),
	)
	return &MergeResult{Entries: entries, Files: files}, nil
}

func dedupSorted(entries []Entry) []Entry {
	out := entries[:0]
	for i, e := range entries {
		if i > 0 && e.PDA.Equals(entries[i-1].PDA) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func collectorFiles(clock clockwork.Clock, dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collector dir: %w", err)
	}

	now := clock.Now()
	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasPrefix(name, collectorPrefix) || !strings.HasSuffix(name, collectorSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if now.Sub(info.ModTime()) <= minBlobAge {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
