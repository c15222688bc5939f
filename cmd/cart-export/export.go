package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	exportPattern = "carts-*.ndjson.gz"
	maxLineBytes  = 4 << 20
)

// exporter appends carts that no previous export contains to a new gzip
// NDJSON file in dir.
type exporter struct {
	src      source
	dir      string
	capacity uint
	fpr      float64
	lg       *zap.Logger
	now      func() time.Time
}

type stats struct {
	Scanned  int
	Skipped  int
	Exported int
	File     string
}

func (e *exporter) Run(ctx context.Context, olderThan time.Duration) (stats, error) {
	var st stats

	previous, err := filepath.Glob(filepath.Join(e.dir, exportPattern))
	if err != nil {
		return st, errors.Wrap(err, "list previous exports")
	}
	slices.Sort(previous)

	// Pass 1: bloom filters over the fingerprints of previous exports.
	e.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(previous)))
	filters, err := e.buildFilters(ctx, previous)
	if err != nil {
		return st, errors.Wrap(err, "build bloom filters")
	}

	var (
		fresh      []record
		candidates []record
	)
	if err := e.src.Each(ctx, e.now().Add(-olderThan), func(r record) error {
		st.Scanned++
		if maybeExported(filters, r.Fingerprint) {
			candidates = append(candidates, r)
		} else {
			fresh = append(fresh, r)
		}
		return nil
	}); err != nil {
		return st, errors.Wrap(err, "read carts")
	}

	// Pass 2: confirm bloom positives against the exact fingerprints.
	if len(candidates) > 0 {
		e.lg.Info("Pass 2: confirming candidates", zap.Int("candidates", len(candidates)))
		want := make(map[string]struct{}, len(candidates))
		for _, r := range candidates {
			want[r.Fingerprint] = struct{}{}
		}
		seen, err := e.confirm(ctx, previous, want)
		if err != nil {
			return st, errors.Wrap(err, "confirm candidates")
		}
		for _, r := range candidates {
			if _, ok := seen[r.Fingerprint]; ok {
				st.Skipped++
				continue
			}
			fresh = append(fresh, r)
		}
	}

	if len(fresh) == 0 {
		e.lg.Info("Nothing to export", zap.Int("scanned", st.Scanned), zap.Int("skipped", st.Skipped))
		return st, nil
	}

	name := filepath.Join(e.dir, "carts-"+e.now().UTC().Format("20060102T150405.000Z")+".ndjson.gz")
	if err := writeExport(name, fresh); err != nil {
		return st, errors.Wrap(err, "write export")
	}
	st.Exported = len(fresh)
	st.File = name
	return st, nil
}

func maybeExported(filters []*bloom.BloomFilter, fp string) bool {
	for _, f := range filters {
		if f.TestString(fp) {
			return true
		}
	}
	return false
}

// buildFilters creates one bloom filter per file, concurrently.
func (e *exporter) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(e.capacity, e.fpr)
			var count int
			if err := streamFingerprints(ctx, path, func(fp string) {
				filter.AddString(fp)
				count++
			}); err != nil {
				return err
			}
			e.lg.Debug("Pass 1 file complete", zap.String("file", path), zap.Int("carts", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// confirm re-streams the files and returns which wanted fingerprints they
// actually contain.
func (e *exporter) confirm(ctx context.Context, files []string, want map[string]struct{}) (map[string]struct{}, error) {
	found := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			hits := make(map[string]struct{})
			if err := streamFingerprints(ctx, path, func(fp string) {
				if _, ok := want[fp]; ok {
					hits[fp] = struct{}{}
				}
			}); err != nil {
				return err
			}
			found[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]struct{})
	for _, hits := range found {
		for fp := range hits {
			merged[fp] = struct{}{}
		}
	}
	return merged, nil
}

// streamFingerprints calls fn with the fingerprint of every line of a gzip
// NDJSON export.
func streamFingerprints(ctx context.Context, path string, fn func(fp string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fp, err := fingerprintField(scanner.Bytes())
		if err != nil {
			return errors.Wrapf(err, "parse line in %s", path)
		}
		if fp != "" {
			fn(fp)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// fingerprintField extracts the "fingerprint" member of an export line
// without decoding the items.
func fingerprintField(line []byte) (string, error) {
	var fp string
	d := jx.DecodeBytes(line)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "fingerprint" {
			return d.Skip()
		}
		v, err := d.Str()
		fp = v
		return err
	})
	return fp, err
}

// writeExport writes records to a temporary file and renames it into place
// so a partial export never matches the export pattern.
func writeExport(path string, records []record) (rerr error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}
	defer func() {
		if rerr != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	gz := pgzip.NewWriter(f)
	if err := gz.SetConcurrency(1<<20, runtime.GOMAXPROCS(0)); err != nil {
		return errors.Wrap(err, "configure gzip")
	}
	bw := bufio.NewWriter(gz)
	enc := json.NewEncoder(bw)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "encode %s", r.Key)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename export")
	}
	return nil
}
