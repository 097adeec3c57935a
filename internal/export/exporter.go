// Package export pages journal and balance records out of a relational
// store into pipe-delimited shard files.
//
// A run goes through four phases, each fatal on failure:
//
//  1. Resolution: look the entity name up in the lookup table to find the
//     physical schema holding its data.
//  2. Count: count the rows of the schema's journal table.
//  3. Extraction: fetch the journal in fixed offset windows, one shard per
//     window, each with the JournalContract header.
//  4. Summary: fetch the whole balance table into one shard with the
//     BalanceContract header.
//
// Nothing is retried and nothing written before a failure is removed.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/logging"
	"github.com/JonMunkholm/csvkit/internal/metrics"
)

const op = "export"

// DefaultPageSize is the journal window size in rows.
const DefaultPageSize int64 = 3_000_000

// Settings are the deployment-specific rules of an export: page size,
// entity-name parsing, and where the lookup, journal and balance data live.
type Settings struct {
	PageSize         int64
	EntitySeparator  string
	EntityToken      int
	LookupTable      string
	LookupNameColumn string
	LookupCodeColumn string
	JournalTable     string
	BalanceTable     string
	Delimiter        byte
	Pool             PoolSettings
}

// DefaultSettings returns the stock export settings.
func DefaultSettings() Settings {
	return Settings{
		PageSize:         DefaultPageSize,
		EntitySeparator:  "_",
		EntityToken:      2,
		LookupTable:      "entity_schema",
		LookupNameColumn: "entity_name",
		LookupCodeColumn: "schema_name",
		JournalTable:     "gl_journal",
		BalanceTable:     "tb_balance",
		Delimiter:        core.DefaultOutputDelimiter,
	}
}

// Job is one export request.
type Job struct {
	ConnectionURL string // store holding the lookup table
	QueryURL      string // store holding the entity schemas
	EntityName    string
	SaveDir       string
}

// Result describes a finished export.
type Result struct {
	Schema        string
	Filename      string
	TotalRows     int64
	JournalRows   int64
	JournalShards []string
	BalanceRows   int64
	BalanceShard  string
}

// Exporter runs export jobs with fixed settings.
type Exporter struct {
	settings Settings
	open     OpenFunc
}

// New returns an Exporter that connects with Open.
func New(s Settings) *Exporter {
	return &Exporter{settings: s, open: Open}
}

// WithOpener replaces how sources are opened.
func (e *Exporter) WithOpener(open OpenFunc) *Exporter {
	e.open = open
	return e
}

// Run exports job with DefaultSettings.
func Run(ctx context.Context, job Job) (Result, error) {
	return New(DefaultSettings()).Run(ctx, job)
}

// Run executes the four export phases for job.
func (e *Exporter) Run(ctx context.Context, job Job) (res Result, err error) {
	start := time.Now()
	defer func() { metrics.Observe(op, start, err) }()

	if err := e.validate(job); err != nil {
		return res, err
	}

	log := logging.WithFields(ctx, "op", op, "entity", job.EntityName, "save_dir", job.SaveDir)
	log.Info("export started")
	defer func() {
		if err != nil {
			log.Error("export failed", "error", err)
		}
	}()

	lookup, err := e.connect(ctx, job.ConnectionURL)
	if err != nil {
		return res, err
	}
	defer lookup.Close()

	res.Schema, err = e.resolve(ctx, lookup, job.EntityName)
	if err != nil {
		return res, err
	}
	res.Filename = EntityFilename(job.EntityName, e.settings.EntitySeparator, e.settings.EntityToken)
	log = log.With("schema", res.Schema, "filename", res.Filename)
	log.Info("entity resolved")

	data := lookup
	if job.QueryURL != job.ConnectionURL {
		data, err = e.connect(ctx, job.QueryURL)
		if err != nil {
			return res, err
		}
		defer data.Close()
	}

	res.TotalRows, err = e.count(ctx, data, res.Schema)
	if err != nil {
		return res, err
	}
	log.Info("journal counted", "rows", res.TotalRows)

	if err := e.extractJournal(ctx, data, job.SaveDir, &res, log); err != nil {
		return res, err
	}

	res.BalanceShard = filepath.Join(job.SaveDir, BalanceShardName(res.Filename))
	q := fullQuery(BalanceContract, res.Schema, e.settings.BalanceTable)
	res.BalanceRows, err = e.writeShard(ctx, data, res.BalanceShard, BalanceContract, q, e.target(res.Schema, e.settings.BalanceTable))
	if err != nil {
		return res, err
	}
	log.Info("balance written", "shard", res.BalanceShard, "rows", res.BalanceRows)

	log.Info("export finished",
		"journal_rows", res.JournalRows,
		"journal_shards", len(res.JournalShards),
		"balance_rows", res.BalanceRows,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Exporter) validate(job Job) error {
	var errs []error
	if job.ConnectionURL == "" {
		errs = append(errs, errors.New("connection url is required"))
	}
	if job.QueryURL == "" {
		errs = append(errs, errors.New("query url is required"))
	}
	if job.EntityName == "" {
		errs = append(errs, errors.New("entity name is required"))
	}
	if job.SaveDir == "" {
		errs = append(errs, errors.New("save dir is required"))
	}
	if e.settings.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", e.settings.PageSize))
	}
	if len(errs) > 0 {
		return core.E(core.KindInvalidArgument, op, "", errors.Join(errs...))
	}
	return nil
}

func (e *Exporter) connect(ctx context.Context, rawURL string) (Source, error) {
	src, err := e.open(ctx, rawURL, e.settings.Pool)
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = core.E(core.KindConnection, op, "", err)
		}
		return nil, err
	}
	return src, nil
}

// resolve maps the entity name to its schema identifier.
func (e *Exporter) resolve(ctx context.Context, src Source, entity string) (string, error) {
	var schema string
	found := false
	q := lookupQuery(src.Dialect(), e.settings)
	err := src.QueryText(ctx, q, []any{entity}, func(row []string) error {
		if !found {
			schema, found = row[0], true
		}
		return nil
	})
	if err != nil {
		return "", core.E(core.KindQuery, op, e.settings.LookupTable, err)
	}
	if !found || schema == "" {
		return "", core.E(core.KindNoCodeFound, op, e.settings.LookupTable, fmt.Errorf("entity %q", entity))
	}
	return schema, nil
}

func (e *Exporter) count(ctx context.Context, src Source, schema string) (int64, error) {
	target := e.target(schema, e.settings.JournalTable)
	var raw string
	err := src.QueryText(ctx, countQuery(schema, e.settings.JournalTable), nil, func(row []string) error {
		raw = row[0]
		return nil
	})
	if err != nil {
		return 0, core.E(core.KindQuery, op, target, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.E(core.KindQuery, op, target, fmt.Errorf("count returned %q: %w", raw, err))
	}
	return n, nil
}

// extractJournal writes the journal shards. When the whole table fits in
// one page the single shard has no numeric suffix, and an empty table gets
// a header-only shard without running a page query.
func (e *Exporter) extractJournal(ctx context.Context, src Source, dir string, res *Result, log *slog.Logger) error {
	step := e.settings.PageSize
	stop := res.TotalRows
	target := e.target(res.Schema, e.settings.JournalTable)

	if step > stop {
		path := filepath.Join(dir, JournalShardName(res.Filename, 0))
		query := ""
		if stop > 0 {
			query = pageQuery(JournalContract, res.Schema, e.settings.JournalTable, step, 0)
		}
		n, err := e.writeShard(ctx, src, path, JournalContract, query, target)
		if err != nil {
			return err
		}
		res.JournalShards = append(res.JournalShards, path)
		res.JournalRows += n
		log.Info("journal page written", "page", 0, "shard", path, "rows", n)
		return nil
	}

	for page, offset := 1, int64(0); offset < stop; page, offset = page+1, offset+step {
		path := filepath.Join(dir, JournalShardName(res.Filename, page))
		query := pageQuery(JournalContract, res.Schema, e.settings.JournalTable, step, offset)
		n, err := e.writeShard(ctx, src, path, JournalContract, query, target)
		if err != nil {
			return err
		}
		res.JournalShards = append(res.JournalShards, path)
		res.JournalRows += n
		log.Info("journal page written", "page", page, "offset", offset, "shard", path, "rows", n)
	}
	return nil
}

// writeShard writes the contract header and, when query is not empty,
// every row it returns to path.
func (e *Exporter) writeShard(ctx context.Context, src Source, path string, c Contract, query, target string) (n int64, err error) {
	w, err := core.CreateWriter(path, core.WriteOptions{Delimiter: e.settings.Delimiter})
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := w.Write(c.Header()); err != nil {
		return 0, err
	}
	if query == "" {
		metrics.ShardsWritten.WithLabelValues(op).Inc()
		return 0, nil
	}

	err = src.QueryText(ctx, query, nil, func(row []string) error {
		if len(row) != len(c) {
			return fmt.Errorf("query returned %d columns, contract has %d", len(row), len(c))
		}
		if err := w.Write(row); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = core.E(core.KindQuery, op, target, err)
		}
		return n, err
	}

	metrics.RowsWritten.WithLabelValues(op).Add(float64(n))
	metrics.ShardsWritten.WithLabelValues(op).Inc()
	return n, nil
}

func (e *Exporter) target(schema, table string) string {
	return schema + "." + table
}
