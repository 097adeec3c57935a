package web

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/export"
	"github.com/JonMunkholm/csvkit/internal/logging"
)

// Request bodies. Delimiters are strings so "\t" and "tab" can be sent;
// Column is a pointer so that column 0 passes the required check.

type filterRowRequest struct {
	CSVPath         string `json:"csv_path" validate:"required"`
	OutputPath      string `json:"output_path" validate:"required"`
	Delimiter       string `json:"delimiter" validate:"required"`
	Column          *int   `json:"column" validate:"required"`
	Literal         string `json:"literal"`
	Mode            string `json:"mode" validate:"omitempty,oneof=exact eq substring contains"`
	OutputDelimiter string `json:"output_delimiter"`
}

type filterRowsRequest struct {
	ListPath        string `json:"list_path" validate:"required"`
	CSVPath         string `json:"csv_path" validate:"required"`
	OutputPath      string `json:"output_path" validate:"required"`
	Delimiter       string `json:"delimiter" validate:"required"`
	Column          *int   `json:"column" validate:"required"`
	OutputDelimiter string `json:"output_delimiter"`
}

type mergeRequest struct {
	FolderPath      string `json:"folder_path" validate:"required"`
	OutputPath      string `json:"output_path" validate:"required"`
	Delimiter       string `json:"delimiter" validate:"required"`
	OutputDelimiter string `json:"output_delimiter"`
}

type splitRequest struct {
	CSVPath         string `json:"csv_path" validate:"required"`
	SaveDir         string `json:"save_dir" validate:"required"`
	Delimiter       string `json:"delimiter" validate:"required"`
	MaxRows         int    `json:"max_rows" validate:"gt=0"`
	OutputDelimiter string `json:"output_delimiter"`
}

type exportRequest struct {
	ConnectionURL string `json:"connection_url"`
	QueryURL      string `json:"query_url"`
	EntityName    string `json:"entity_name" validate:"required"`
	SaveDir       string `json:"save_dir" validate:"required"`
}

// Response bodies.

type jobResponse struct {
	JobID      string `json:"job_id"`
	Operation  string `json:"operation"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

type filterResult struct {
	RowsRead    int `json:"rows_read"`
	RowsWritten int `json:"rows_written"`
}

type mergeResult struct {
	Files       []string `json:"files"`
	RowsWritten int      `json:"rows_written"`
}

type splitResult struct {
	Shards      []string `json:"shards"`
	RowsWritten int      `json:"rows_written"`
}

type exportResult struct {
	Schema        string   `json:"schema"`
	Filename      string   `json:"filename"`
	TotalRows     int64    `json:"total_rows"`
	JournalRows   int64    `json:"journal_rows"`
	JournalShards []string `json:"journal_shards"`
	BalanceRows   int64    `json:"balance_rows"`
	BalanceShard  string   `json:"balance_shard"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names in validation errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads and validates a JSON body into dst. Failures are
// InvalidArgument errors.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), dst); err != nil {
		return core.E(core.KindInvalidArgument, op, "", fmt.Errorf("decode body: %w", err))
	}
	if err := s.validate.Struct(dst); err != nil {
		return core.E(core.KindInvalidArgument, op, "", formatValidation(err))
	}
	return nil
}

func formatValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// options returns the configured file options with an optional
// per-request output delimiter.
func (s *Server) options(outputDelimiter string) (core.Options, error) {
	opts := s.cfg.CoreOptions()
	if outputDelimiter == "" {
		return opts, nil
	}
	d, err := core.ParseDelimiter(outputDelimiter)
	if err != nil {
		return opts, err
	}
	opts.OutputDelimiter = d
	return opts, nil
}

// runJob assigns a job id, waits for a limiter slot and runs fn under the
// configured job timeout. The result or the mapped error is written as JSON.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context) (any, error)) {
	jobID := uuid.NewString()
	ctx := logging.ContextWithJobID(r.Context(), jobID)
	r = r.WithContext(ctx)
	w.Header().Set("X-Job-ID", jobID)

	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	if s.cfg.Jobs.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Jobs.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, jobResponse{
		JobID:      jobID,
		Operation:  operation,
		DurationMS: time.Since(start).Milliseconds(),
		Result:     result,
	})
}

func (s *Server) handleFilterRow(w http.ResponseWriter, r *http.Request) {
	var req filterRowRequest
	if err := s.decode(w, r, "filter-row", &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.runJob(w, r, "filter-row", func(ctx context.Context) (any, error) {
		delim, err := core.ParseDelimiter(req.Delimiter)
		if err != nil {
			return nil, err
		}
		mode, err := core.ParseMatchMode(req.Mode)
		if err != nil {
			return nil, err
		}
		opts, err := s.options(req.OutputDelimiter)
		if err != nil {
			return nil, err
		}

		res, err := core.FilterRow(ctx, core.FilterRowRequest{
			CSVPath:    req.CSVPath,
			OutputPath: req.OutputPath,
			Delimiter:  delim,
			Column:     *req.Column,
			Literal:    req.Literal,
			Mode:       mode,
			Options:    opts,
		})
		if err != nil {
			return nil, err
		}
		return filterResult{RowsRead: res.RowsRead, RowsWritten: res.RowsWritten}, nil
	})
}

func (s *Server) handleFilterRows(w http.ResponseWriter, r *http.Request) {
	var req filterRowsRequest
	if err := s.decode(w, r, "filter-rows", &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.runJob(w, r, "filter-rows", func(ctx context.Context) (any, error) {
		delim, err := core.ParseDelimiter(req.Delimiter)
		if err != nil {
			return nil, err
		}
		opts, err := s.options(req.OutputDelimiter)
		if err != nil {
			return nil, err
		}

		res, err := core.FilterRows(ctx, core.FilterRowsRequest{
			ListPath:   req.ListPath,
			CSVPath:    req.CSVPath,
			OutputPath: req.OutputPath,
			Delimiter:  delim,
			Column:     *req.Column,
			Options:    opts,
		})
		if err != nil {
			return nil, err
		}
		return filterResult{RowsRead: res.RowsRead, RowsWritten: res.RowsWritten}, nil
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := s.decode(w, r, "merge", &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.runJob(w, r, "merge", func(ctx context.Context) (any, error) {
		delim, err := core.ParseDelimiter(req.Delimiter)
		if err != nil {
			return nil, err
		}
		opts, err := s.options(req.OutputDelimiter)
		if err != nil {
			return nil, err
		}

		res, err := core.MergeCSV(ctx, core.MergeRequest{
			FolderPath: req.FolderPath,
			OutputPath: req.OutputPath,
			Delimiter:  delim,
			Options:    opts,
		})
		if err != nil {
			return nil, err
		}
		return mergeResult{Files: res.Files, RowsWritten: res.RowsWritten}, nil
	})
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := s.decode(w, r, "split", &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.runJob(w, r, "split", func(ctx context.Context) (any, error) {
		delim, err := core.ParseDelimiter(req.Delimiter)
		if err != nil {
			return nil, err
		}
		opts, err := s.options(req.OutputDelimiter)
		if err != nil {
			return nil, err
		}

		res, err := core.SplitCSV(ctx, core.SplitRequest{
			CSVPath:   req.CSVPath,
			SaveDir:   req.SaveDir,
			Delimiter: delim,
			MaxRows:   req.MaxRows,
			Options:   opts,
		})
		if err != nil {
			return nil, err
		}
		return splitResult{Shards: res.Shards, RowsWritten: res.RowsWritten}, nil
	})
}

// handleExport falls back to the configured URLs when the request omits them.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := s.decode(w, r, "export", &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	job := export.Job{
		ConnectionURL: firstNonEmpty(req.ConnectionURL, s.cfg.Export.ConnectionURL),
		QueryURL:      firstNonEmpty(req.QueryURL, req.ConnectionURL, s.cfg.Export.QueryURL),
		EntityName:    req.EntityName,
		SaveDir:       req.SaveDir,
	}

	s.runJob(w, r, "export", func(ctx context.Context) (any, error) {
		res, err := s.exporter.Run(ctx, job)
		if err != nil {
			return nil, err
		}
		return exportResult{
			Schema:        res.Schema,
			Filename:      res.Filename,
			TotalRows:     res.TotalRows,
			JournalRows:   res.JournalRows,
			JournalShards: res.JournalShards,
			BalanceRows:   res.BalanceRows,
			BalanceShard:  res.BalanceShard,
		}, nil
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
