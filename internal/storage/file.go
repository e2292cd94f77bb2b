package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "ticksched/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// It keeps a single append-only JSON Lines file (<prefix>.runs.jsonl).
// RecentRuns re-reads the file; that is fine for an operator-facing history
// of modest size, and keeps the hot AppendRun path a pure append.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path     string
	runsFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"
	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, path: runsPath, runsFile: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("runs file closed")
	}
	return json.NewEncoder(s.runsFile).Encode(r)
}

func (s *fileStore) RecentRuns(ctx context.Context, n int) ([]RunRecord, error) {
	_ = ctx
	if n <= 0 {
		n = 50
	}

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	// Ring over the last n decodable lines; malformed lines are skipped.
	out := make([]RunRecord, 0, n)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
		if len(out) > n {
			out = out[1:]
		}
	}
	return out, sc.Err()
}
