package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/csvkit/internal/logging"
	"github.com/JonMunkholm/csvkit/internal/metrics"
)

// ShardName returns the name of shard n (1-based) for a file stem.
func ShardName(stem string, n int) string {
	return fmt.Sprintf("%s_%d.csv", stem, n)
}

// SplitCSV writes the data records of req.CSVPath into shards of at most
// req.MaxRows records each, named {stem}_{n}.csv in req.SaveDir. Every
// shard starts with the input header. A full shard is closed at once; the
// next one is opened only when another record arrives, so the shard count is
// ceil(rows/MaxRows), with a single header-only shard for an input without
// data.
func SplitCSV(ctx context.Context, req SplitRequest) (res SplitResult, err error) {
	const op = "split"
	start := time.Now()
	defer func() { metrics.Observe(op, start, err) }()

	if req.MaxRows <= 0 {
		return res, argErr(op, "max rows must be positive, got %d", req.MaxRows)
	}

	base := filepath.Base(req.CSVPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	log := logging.WithFields(ctx, "op", op, "input", req.CSVPath, "save_dir", req.SaveDir, "max_rows", req.MaxRows)
	log.Info("split started")

	r, err := OpenReader(req.CSVPath, ReadOptions{Delimiter: req.Delimiter, HasHeader: true, SanitizeUTF8: req.SanitizeUTF8})
	if err != nil {
		return res, err
	}
	defer r.Close()

	header := r.Header()
	wopts := req.writeOptions()

	defer func() {
		metrics.RowsRead.WithLabelValues(op).Add(float64(res.RowsWritten))
		metrics.RowsWritten.WithLabelValues(op).Add(float64(res.RowsWritten))
	}()

	var w *RecordWriter
	defer func() {
		if w != nil {
			closeWriter(w, &err)
		}
	}()

	openShard := func() error {
		path := filepath.Join(req.SaveDir, ShardName(stem, len(res.Shards)+1))
		sw, err := CreateWriter(path, wopts)
		if err != nil {
			return err
		}
		w = sw
		res.Shards = append(res.Shards, path)
		if header != nil {
			return w.Write(header)
		}
		return nil
	}

	closeShard := func() error {
		cerr := w.Close()
		if cerr == nil {
			metrics.ShardsWritten.WithLabelValues(op).Inc()
			log.Debug("shard written", "shard", w.Path(), "rows", w.Rows())
		}
		w = nil
		return cerr
	}

	if err := openShard(); err != nil {
		return res, err
	}

	inShard := 0
	for rec, rerr := range r.Records() {
		if rerr != nil {
			return res, rerr
		}
		if err := checkContext(ctx, op, r.Rows(), r.Line()); err != nil {
			return res, err
		}

		if w == nil {
			if err := openShard(); err != nil {
				return res, err
			}
			inShard = 0
		}

		if err := w.Write(rec); err != nil {
			return res, err
		}
		inShard++
		res.RowsWritten++

		if inShard == req.MaxRows {
			if err := closeShard(); err != nil {
				return res, err
			}
		}
	}

	if w != nil {
		if err := closeShard(); err != nil {
			return res, err
		}
	}

	log.Info("split finished", "shards", len(res.Shards), "rows_written", res.RowsWritten, "duration", time.Since(start))
	return res, nil
}
