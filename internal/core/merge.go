package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/csvkit/internal/logging"
	"github.com/JonMunkholm/csvkit/internal/metrics"
)

// MergeCSV concatenates every .csv file in req.FolderPath into
// req.OutputPath. The header of the first file is written once; the header
// of every file is consumed. Files are taken in directory order, which is
// whatever the file system returns, not sorted.
func MergeCSV(ctx context.Context, req MergeRequest) (res MergeResult, err error) {
	const op = "merge"
	start := time.Now()
	defer func() { metrics.Observe(op, start, err) }()

	log := logging.WithFields(ctx, "op", op, "folder", req.FolderPath, "output", req.OutputPath)
	log.Info("merge started")

	files, err := listCSVFiles(req.FolderPath, req.OutputPath)
	if err != nil {
		return res, err
	}

	w, err := CreateWriter(req.OutputPath, req.writeOptions())
	if err != nil {
		return res, err
	}
	defer closeWriter(w, &err)
	defer func() { metrics.RowsWritten.WithLabelValues(op).Add(float64(res.RowsWritten)) }()

	headerWritten := false
	for _, path := range files {
		n, wrote, err := appendFile(ctx, w, path, req.Delimiter, !headerWritten, req.Options)
		res.RowsWritten += n
		if err != nil {
			log.Error("merge failed", "file", path, "error", err)
			return res, err
		}
		headerWritten = headerWritten || wrote
		res.Files = append(res.Files, path)
		log.Debug("file merged", "file", path, "rows", n)
	}

	log.Info("merge finished", "files", len(res.Files), "rows_written", res.RowsWritten, "duration", time.Since(start))
	return res, nil
}

// appendFile copies the data records of path into w, writing its header
// first when writeHeader is set. It reports whether a header was written.
func appendFile(ctx context.Context, w *RecordWriter, path string, delim byte, writeHeader bool, opts Options) (n int, wrote bool, err error) {
	defer func() { metrics.RowsRead.WithLabelValues("merge").Add(float64(n)) }()

	r, err := OpenReader(path, ReadOptions{Delimiter: delim, HasHeader: true, SanitizeUTF8: opts.SanitizeUTF8})
	if err != nil {
		return 0, false, err
	}
	defer r.Close()

	header := r.Header()
	if header == nil {
		return 0, false, nil
	}

	if writeHeader {
		if err := w.Write(header); err != nil {
			return 0, false, err
		}
		wrote = true
	}

	for rec, err := range r.Records() {
		if err != nil {
			return n, wrote, err
		}
		if err := checkContext(ctx, "merge", n+1, r.Line()); err != nil {
			return n, wrote, err
		}
		if err := w.Write(rec); err != nil {
			return n, wrote, err
		}
		n++
	}
	return n, wrote, nil
}

// listCSVFiles returns the regular .csv files of dir in directory order,
// leaving out the merge output itself.
func listCSVFiles(dir, output string) ([]string, error) {
	d, err := os.Open(dir)
	if err != nil {
		return nil, ioErr("merge", dir, err)
	}
	defer d.Close()

	// (*os.File).ReadDir keeps the file-system order; os.ReadDir would sort.
	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, ioErr("merge", dir, err)
	}

	outAbs, _ := filepath.Abs(output)

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil && abs == outAbs {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
