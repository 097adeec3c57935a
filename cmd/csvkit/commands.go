package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/export"
)

// ioFlags are the delimiter flags shared by the file operations.
type ioFlags struct {
	delimiter       string
	outputDelimiter string
}

func (f *ioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.delimiter, "delimiter", "d", ",", `input field delimiter (single byte, or "\t")`)
	cmd.Flags().StringVar(&f.outputDelimiter, "output-delimiter", "", "output field delimiter (default CSV_OUTPUT_DELIMITER)")
}

// resolve parses the delimiters against the configured defaults.
func (f *ioFlags) resolve(a *app) (byte, core.Options, error) {
	opts := a.cfg.CoreOptions()
	delim, err := core.ParseDelimiter(f.delimiter)
	if err != nil {
		return 0, opts, err
	}
	if f.outputDelimiter != "" {
		d, err := core.ParseDelimiter(f.outputDelimiter)
		if err != nil {
			return 0, opts, err
		}
		opts.OutputDelimiter = d
	}
	return delim, opts, nil
}

func mustRequire(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		if err := cmd.MarkFlagRequired(n); err != nil {
			panic(err)
		}
	}
}

func (a *app) filterRowCmd() *cobra.Command {
	var (
		flags   ioFlags
		in, out string
		column  int
		literal string
		mode    string
	)

	cmd := &cobra.Command{
		Use:   "filter-row",
		Short: "Keep records whose column equals or contains a literal",
		Long: `Copies the first record of the input unchanged, then every later record
whose field at --column equals --literal (--mode exact) or contains it
(--mode substring).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, opts, err := flags.resolve(a)
			if err != nil {
				return err
			}
			m, err := core.ParseMatchMode(mode)
			if err != nil {
				return err
			}

			ctx, stop := jobContext(cmd.Context())
			defer stop()

			res, err := core.FilterRow(ctx, core.FilterRowRequest{
				CSVPath:    in,
				OutputPath: out,
				Delimiter:  delim,
				Column:     column,
				Literal:    literal,
				Mode:       m,
				Options:    opts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d records in %s\n", res.RowsWritten, res.RowsRead, out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&in, "input", "i", "", "input file")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().IntVarP(&column, "column", "c", 0, "zero-based column index")
	cmd.Flags().StringVarP(&literal, "literal", "l", "", "value to match")
	cmd.Flags().StringVarP(&mode, "mode", "m", "exact", "match mode: exact or substring")
	mustRequire(cmd, "input", "output")
	return cmd
}

func (a *app) filterRowsCmd() *cobra.Command {
	var (
		flags         ioFlags
		list, in, out string
		column        int
	)

	cmd := &cobra.Command{
		Use:   "filter-rows",
		Short: "Keep records whose column contains any literal from a list file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, opts, err := flags.resolve(a)
			if err != nil {
				return err
			}

			ctx, stop := jobContext(cmd.Context())
			defer stop()

			res, err := core.FilterRows(ctx, core.FilterRowsRequest{
				ListPath:   list,
				CSVPath:    in,
				OutputPath: out,
				Delimiter:  delim,
				Column:     column,
				Options:    opts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d records in %s\n", res.RowsWritten, res.RowsRead, out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&list, "list", "", "file with one literal per line")
	cmd.Flags().StringVarP(&in, "input", "i", "", "input file")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().IntVarP(&column, "column", "c", 0, "zero-based column index")
	mustRequire(cmd, "list", "input", "output")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var (
		flags       ioFlags
		folder, out string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Concatenate every .csv file in a folder under one header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, opts, err := flags.resolve(a)
			if err != nil {
				return err
			}

			ctx, stop := jobContext(cmd.Context())
			defer stop()

			res, err := core.MergeCSV(ctx, core.MergeRequest{
				FolderPath: folder,
				OutputPath: out,
				Delimiter:  delim,
				Options:    opts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d files, %d records into %s\n", len(res.Files), res.RowsWritten, out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&folder, "folder", "f", "", "folder holding the .csv files")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	mustRequire(cmd, "folder", "output")
	return cmd
}

func (a *app) splitCmd() *cobra.Command {
	var (
		flags   ioFlags
		in, dir string
		maxRows int
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a file into shards of at most --max-rows records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, opts, err := flags.resolve(a)
			if err != nil {
				return err
			}

			ctx, stop := jobContext(cmd.Context())
			defer stop()

			res, err := core.SplitCSV(ctx, core.SplitRequest{
				CSVPath:   in,
				SaveDir:   dir,
				Delimiter: delim,
				MaxRows:   maxRows,
				Options:   opts,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %d records to %d shards\n", res.RowsWritten, len(res.Shards))
			for _, s := range res.Shards {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&in, "input", "i", "", "input file")
	cmd.Flags().StringVar(&dir, "save-dir", "", "directory for the shards")
	cmd.Flags().IntVarP(&maxRows, "max-rows", "n", 0, "records per shard")
	mustRequire(cmd, "input", "save-dir", "max-rows")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		job      export.Job
		pageSize int64
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an entity's journal and balance tables to shard files",
		Long: `Resolves --entity to its schema through the lookup table, then writes the
journal in pages of EXPORT_PAGE_SIZE rows to {prefix}_GL[_n].csv and the
balance table to {prefix}_TB.csv in --save-dir.

Connection URLs default to EXPORT_CONNECTION_URL (or DATABASE_URL) and
EXPORT_QUERY_URL. postgres://, sqlite:// and file: URLs are supported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// An explicit --connection-url also serves as the data store
			// unless --query-url says otherwise
			if job.QueryURL == "" && job.ConnectionURL != "" {
				job.QueryURL = job.ConnectionURL
			}
			if job.ConnectionURL == "" {
				job.ConnectionURL = a.cfg.Export.ConnectionURL
			}
			if job.QueryURL == "" {
				job.QueryURL = a.cfg.Export.QueryURL
			}

			settings := a.cfg.ExportSettings()
			if pageSize > 0 {
				settings.PageSize = pageSize
			}

			ctx, stop := jobContext(cmd.Context())
			defer stop()

			res, err := export.New(settings).Run(ctx, job)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema %s: %d journal records in %d shards, %d balance records\n",
				res.Schema, res.JournalRows, len(res.JournalShards), res.BalanceRows)
			for _, s := range res.JournalShards {
				fmt.Fprintln(out, s)
			}
			fmt.Fprintln(out, res.BalanceShard)
			return nil
		},
	}

	cmd.Flags().StringVar(&job.ConnectionURL, "connection-url", "", "lookup store URL")
	cmd.Flags().StringVar(&job.QueryURL, "query-url", "", "data store URL")
	cmd.Flags().StringVarP(&job.EntityName, "entity", "e", "", "entity name")
	cmd.Flags().StringVar(&job.SaveDir, "save-dir", "", "directory for the shards")
	cmd.Flags().Int64Var(&pageSize, "page-size", 0, "journal rows per shard (overrides EXPORT_PAGE_SIZE)")
	mustRequire(cmd, "entity", "save-dir")
	return cmd
}
