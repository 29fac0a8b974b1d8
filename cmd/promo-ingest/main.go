// Command promo-ingest bulk-loads promo codes from gzip-compressed code
// lists. A code is accepted when it appears in at least min-files of the
// input files.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	progressEvery = 10_000_000
	writeBatch    = 1000
)

type options struct {
	dataDir       string
	pattern       string
	databaseURL   string
	minFiles      int
	minLen        int
	maxLen        int
	bloomCapacity uint
	bloomFPR      float64
	percent       int
	validDays     int
	maxUses       int
	dryRun        bool
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing the code lists")
	flag.StringVar(&opts.pattern, "pattern", "*.gz", "glob of code list files inside data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.minFiles, "min-files", 2, "number of files a code must appear in")
	flag.IntVar(&opts.minLen, "min-len", 8, "minimum code length")
	flag.IntVar(&opts.maxLen, "max-len", 10, "maximum code length")
	flag.UintVar(&opts.bloomCapacity, "bloom-capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&opts.bloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&opts.percent, "percent", 10, "discount percent for ingested codes")
	flag.IntVar(&opts.validDays, "valid-days", 30, "days until ingested codes expire")
	flag.IntVar(&opts.maxUses, "max-uses", 0, "use cap per code, 0 for unlimited")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "report accepted codes without writing them")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func (o options) validate(files int) error {
	switch {
	case files == 0:
		return errors.Errorf("no files match %s", filepath.Join(o.dataDir, o.pattern))
	case files > bits.UintSize:
		return errors.Errorf("at most %d files are supported, got %d", bits.UintSize, files)
	case o.minFiles < 1 || o.minFiles > files:
		return errors.Errorf("min-files must be between 1 and %d", files)
	case o.minLen < 1 || o.maxLen < o.minLen:
		return errors.New("invalid code length bounds")
	case o.percent < 1 || o.percent > 100:
		return errors.New("percent must be between 1 and 100")
	case o.validDays < 1:
		return errors.New("valid-days must be at least 1")
	case o.maxUses < 0:
		return errors.New("max-uses must not be negative")
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	slices.Sort(files)
	if err := opts.validate(len(files)); err != nil {
		return err
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate codes appearing in min-files or more files.
	slog.Info("pass 2: finding candidate codes", slog.Int("min_files", opts.minFiles))

	validCodes, err := findValidCodes(ctx, files, filters, opts)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 || opts.dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCodes(ctx, postgres.NewPromoRepository(pool), validCodes, opts, time.Now().UTC())
}

// accept reports whether line is a candidate code and returns it canonicalized.
func (o options) accept(line string) (string, bool) {
	code := promo.Canonical(line)
	return code, len(code) >= o.minLen && len(code) <= o.maxLen
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, opts options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, opts, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, opts options, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(opts.bloomCapacity, opts.bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			code, ok := opts.accept(line)
			if !ok {
				return
			}
			filter.AddString(code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for %s", path)
		}

		slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("total_codes", count))

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and records, per code, which files'
// bloom filters contain it. A code is valid when at least opts.minFiles files
// contain it.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, opts options) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, opts, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= opts.minFiles {
			valid = append(valid, code)
		}
	}
	slices.Sort(valid)

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	opts options,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			code, ok := opts.accept(line)
			if !ok {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.String("file", path), slog.Uint64("codes", count))
			}

			// This file plus every other file whose filter may hold the code.
			mask := fileBit
			for j, f := range filters {
				if j != idx && f.TestString(code) {
					mask |= uint(1) << uint(j)
				}
			}
			if bits.OnesCount(mask) >= opts.minFiles {
				candidates[code] |= mask
			}
		}); err != nil {
			return errors.Wrapf(err, "scan %s for candidates", path)
		}

		slog.Info("pass 2 complete",
			slog.String("file", path),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// codeWriter persists promo codes in bulk.
type codeWriter interface {
	UpsertBatch(ctx context.Context, codes []promo.Code) error
}

// writeCodes upserts all valid codes in batches of writeBatch.
func writeCodes(ctx context.Context, repo codeWriter, codes []string, opts options, now time.Time) error {
	slog.Info("writing promo codes to database", slog.Int("count", len(codes)))

	var maxUses *int
	if opts.maxUses > 0 {
		maxUses = &opts.maxUses
	}

	batch := make([]promo.Code, 0, writeBatch)
	written := 0
	for chunk := range slices.Chunk(codes, writeBatch) {
		batch = batch[:0]
		for _, code := range chunk {
			batch = append(batch, promo.Code{
				ID:        uuid.New().String(),
				Code:      code,
				Percent:   opts.percent,
				ExpiresAt: now.AddDate(0, 0, opts.validDays),
				MaxUses:   maxUses,
				Active:    true,
				CreatedAt: now,
			})
		}
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert batch at %d", written)
		}
		written += len(chunk)
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(codes)))
	}

	return nil
}
