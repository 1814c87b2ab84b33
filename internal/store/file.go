package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/version"
)

// FileSink writes one JSON document per version into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink returns a FileSink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Begin creates Dir if needed and removes the previously written versions
// of ids, or every version when ids is empty.
func (s *FileSink) Begin(ctx context.Context, ids []string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := s.Reset(ctx, ids); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// Reset removes the .json files of Dir that belong to ids, or all of them
// when ids is empty.
func (s *FileSink) Reset(ctx context.Context, ids []string) error {
	files, err := s.files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !inScope(strings.TrimSuffix(filepath.Base(f), ".json"), ids) {
			continue
		}
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("removing previous version: %w", err)
		}
	}
	return nil
}

// Discard removes the files of amID and of its regime splits. It ignores
// ctx cancellation so a timed-out order can still be cleaned up.
func (s *FileSink) Discard(_ context.Context, amID string) error {
	return s.Reset(context.Background(), []string{amID})
}

// Save writes <amID>_<version name>.json for every version.
func (s *FileSink) Save(ctx context.Context, amID string, versions version.Versions) error {
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := am.Marshal(v.Text)
		if err != nil {
			return err
		}
		path := filepath.Join(s.Dir, Key(amID, v)+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// Load reads every version of Dir, keyed by file name without extension.
func (s *FileSink) Load(ctx context.Context) (map[string]am.ArreteMinisteriel, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	out := make(map[string]am.ArreteMinisteriel, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		text, err := am.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		out[strings.TrimSuffix(filepath.Base(f), ".json")] = text
	}
	return out, nil
}

func (s *FileSink) files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.Dir, err)
	}
	return files, nil
}
