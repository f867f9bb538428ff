// Package dataset holds the read-only reference index of known subsidies used
// for entity-validity and amount-accuracy checks. Loaded once at startup;
// reload policy is the operator's problem.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AmountTolerance is the relative deviation allowed between a claimed amount
// and the catalog amount before the claim counts as detail-incorrect.
const AmountTolerance = 0.10

type Record struct {
	Name            string `json:"name"`
	Summary         string `json:"summary"`
	ReferenceAmount int64  `json:"reference_amount,omitempty"`
	ReferenceURL    string `json:"reference_url,omitempty"`
}

type Index struct {
	byName map[string]Record
	count  int
}

func NewIndex(records []Record) *Index {
	idx := &Index{byName: make(map[string]Record, len(records))}
	for _, r := range records {
		key := normalize(r.Name)
		if key == "" {
			continue
		}
		if _, exists := idx.byName[key]; !exists {
			idx.byName[key] = r
			idx.count++
		}
	}
	return idx
}

// Load reads all given JSON files in parallel and merges them into one index.
// Each file holds a top-level array of records.
func Load(ctx context.Context, paths ...string) (*Index, error) {
	var mu sync.Mutex
	var all []Record

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read dataset %s: %w", path, err)
			}
			var records []Record
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse dataset %s: %w", path, err)
			}
			mu.Lock()
			all = append(all, records...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewIndex(all), nil
}

func (i *Index) Lookup(name string) (Record, bool) {
	r, ok := i.byName[normalize(name)]
	return r, ok
}

func (i *Index) Len() int {
	return i.count
}

// AmountWithin reports whether claimed is within AmountTolerance of reference.
// A zero reference accepts any claim (the catalog has no figure to check).
func AmountWithin(claimed, reference int64) bool {
	if reference == 0 {
		return true
	}
	deviation := math.Abs(float64(claimed)-float64(reference)) / float64(reference)
	return deviation <= AmountTolerance
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
