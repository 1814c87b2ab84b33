// Package source reads the inputs of a corpus build: base texts, their
// metadata and their parametrizations.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/param"
)

// ErrNotFound is returned when a requested text does not exist.
var ErrNotFound = errors.New("not found")

// fakePrefix marks test orders that never reach the corpus.
const fakePrefix = "FAKE"

// Source provides the inputs of a corpus build.
type Source interface {
	Metadata(ctx context.Context) ([]am.Metadata, error)
	Text(ctx context.Context, id string) (*Text, error)
	Parametrization(ctx context.Context, id string) (param.Parametrization, error)
}

// Text is a loaded base text with the hash of its source file.
type Text struct {
	Path string
	Hash string // "sha256:<hex>"
	AM   am.ArreteMinisteriel
}

// Dir reads inputs from a directory laid out as:
//
//	metadata.json               array of metadata records
//	texts/<id>.json             base texts
//	parametrizations/<id>.toml  rules (.yaml, .yml or .json also accepted)
type Dir struct {
	Root string
}

// NewDir returns a Dir source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Metadata returns the publishable orders: in force and not fake. A
// malformed record fails the whole load.
func (d *Dir) Metadata(ctx context.Context) ([]am.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Root, "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", am.ErrStructuralInput, path, err)
	}
	out := make([]am.Metadata, 0, len(records))
	for i, rec := range records {
		md, err := am.MetadataFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("metadata record %d: %w", i, err)
		}
		if !Publishable(md) {
			continue
		}
		out = append(out, md)
	}
	return out, nil
}

// Publishable reports whether md belongs in the corpus.
func Publishable(md am.Metadata) bool {
	return md.State == am.StateInForce && !strings.HasPrefix(md.ID, fakePrefix)
}

// Text loads texts/<id>.json.
func (d *Dir) Text(ctx context.Context, id string) (*Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Root, "texts", id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: text %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading text %s: %w", id, err)
	}
	text, err := am.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return &Text{Path: path, Hash: fmt.Sprintf("sha256:%x", sum), AM: text}, nil
}

// Parametrization loads the first of parametrizations/<id>.{toml,yaml,yml,json}
// that exists. An order without a file gets the empty parametrization.
func (d *Dir) Parametrization(ctx context.Context, id string) (param.Parametrization, error) {
	if err := ctx.Err(); err != nil {
		return param.Parametrization{}, err
	}
	path, ok := d.ParametrizationPath(id)
	if !ok {
		return param.Parametrization{}, nil
	}
	p, err := param.LoadFile(path)
	if err != nil {
		return param.Parametrization{}, fmt.Errorf("%w: %s: %v", am.ErrStructuralInput, path, err)
	}
	return p, nil
}

// ParametrizationPath returns the parametrization file of id, if any.
func (d *Dir) ParametrizationPath(id string) (string, bool) {
	for _, ext := range param.Extensions {
		path := filepath.Join(d.Root, "parametrizations", id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
