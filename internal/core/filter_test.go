package core

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/JonMunkholm/csvkit/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestFilterRow(t *testing.T) {
	const input = "a,b,c\n1,x,2\n2,y,2\n3,x,2\n4,xyz,2\n"

	tests := []struct {
		name        string
		column      int
		literal     string
		mode        MatchMode
		want        string
		wantWritten int
	}{
		{
			name:        "exact",
			column:      1,
			literal:     "x",
			mode:        MatchExact,
			want:        "a|b|c\n1|x|2\n3|x|2\n",
			wantWritten: 2,
		},
		{
			name:        "substring",
			column:      1,
			literal:     "x",
			mode:        MatchSubstring,
			want:        "a|b|c\n1|x|2\n3|x|2\n4|xyz|2\n",
			wantWritten: 3,
		},
		{
			name:        "no match keeps first record",
			column:      0,
			literal:     "9",
			mode:        MatchExact,
			want:        "a|b|c\n",
			wantWritten: 0,
		},
		{
			name:        "header is never tested",
			column:      0,
			literal:     "a",
			mode:        MatchExact,
			want:        "a|b|c\n",
			wantWritten: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := writeTemp(t, "in.csv", input)
			out := filepath.Join(t.TempDir(), "out.csv")

			res, err := FilterRow(context.Background(), FilterRowRequest{
				CSVPath:    in,
				OutputPath: out,
				Delimiter:  ',',
				Column:     tt.column,
				Literal:    tt.literal,
				Mode:       tt.mode,
			})
			if err != nil {
				t.Fatalf("FilterRow: %v", err)
			}
			if res.RowsRead != 4 {
				t.Errorf("RowsRead = %d, want 4", res.RowsRead)
			}
			if res.RowsWritten != tt.wantWritten {
				t.Errorf("RowsWritten = %d, want %d", res.RowsWritten, tt.wantWritten)
			}
			if got := readFile(t, out); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterRow_OutputDelimiter(t *testing.T) {
	in := writeTemp(t, "in.tsv", "k\tv\n1\ta\n2\tb\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	_, err := FilterRow(context.Background(), FilterRowRequest{
		CSVPath:    in,
		OutputPath: out,
		Delimiter:  '\t',
		Column:     1,
		Literal:    "b",
		Options:    Options{OutputDelimiter: ','},
	})
	if err != nil {
		t.Fatalf("FilterRow: %v", err)
	}
	if got, want := readFile(t, out), "k,v\n2,b\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFilterRow_EmptyInput(t *testing.T) {
	in := writeTemp(t, "in.csv", "")
	out := filepath.Join(t.TempDir(), "out.csv")

	res, err := FilterRow(context.Background(), FilterRowRequest{CSVPath: in, OutputPath: out, Delimiter: ','})
	if err != nil {
		t.Fatalf("FilterRow: %v", err)
	}
	if res != (FilterResult{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if got := readFile(t, out); got != "" {
		t.Errorf("output = %q, want empty", got)
	}
}

func TestFilterRow_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		column  int
		want    error
	}{
		{"column beyond width", "a,b\n1,2\n", 2, ErrIndex},
		{"negative column", "a,b\n1,2\n", -1, ErrIndex},
		{"ragged record", "a,b\n1,2\n3\n", 0, ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := writeTemp(t, "in.csv", tt.content)
			out := filepath.Join(t.TempDir(), "out.csv")

			_, err := FilterRow(context.Background(), FilterRowRequest{
				CSVPath: in, OutputPath: out, Delimiter: ',', Column: tt.column, Literal: "1",
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("missing input", func(t *testing.T) {
		dir := t.TempDir()
		_, err := FilterRow(context.Background(), FilterRowRequest{
			CSVPath: filepath.Join(dir, "nope.csv"), OutputPath: filepath.Join(dir, "out.csv"), Delimiter: ',',
		})
		if !errors.Is(err, ErrIO) {
			t.Errorf("err = %v, want ErrIO", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		in := writeTemp(t, "in.csv", "a\n")
		_, err := FilterRow(context.Background(), FilterRowRequest{
			CSVPath: in, OutputPath: filepath.Join(t.TempDir(), "out.csv"), Delimiter: ',', Mode: MatchMode(7),
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestFilterRow_CountsRowsBeforeFailure(t *testing.T) {
	read := metrics.RowsRead.WithLabelValues("filter_row")
	written := metrics.RowsWritten.WithLabelValues("filter_row")
	readBefore, writtenBefore := counterValue(t, read), counterValue(t, written)

	in := writeTemp(t, "in.csv", "a,b\n1,x\n2,x\n3\n")
	_, err := FilterRow(context.Background(), FilterRowRequest{
		CSVPath: in, OutputPath: filepath.Join(t.TempDir(), "out.csv"), Delimiter: ',', Column: 1, Literal: "x",
	})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}

	if got := counterValue(t, read) - readBefore; got != 2 {
		t.Errorf("rows read delta = %v, want 2", got)
	}
	if got := counterValue(t, written) - writtenBefore; got != 2 {
		t.Errorf("rows written delta = %v, want 2", got)
	}
}

func TestMergeCSV_CountsRowsBeforeFailure(t *testing.T) {
	read := metrics.RowsRead.WithLabelValues("merge")
	before := counterValue(t, read)

	dir := writeDir(t, map[string]string{"bad.csv": "a,b\n1,2\n3,4\n5\n"})
	_, err := MergeCSV(context.Background(), MergeRequest{
		FolderPath: dir, OutputPath: filepath.Join(t.TempDir(), "out.csv"), Delimiter: ',',
	})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
	if got := counterValue(t, read) - before; got != 2 {
		t.Errorf("rows read delta = %v, want 2", got)
	}
}

func TestFilterRow_Cancelled(t *testing.T) {
	old := ContextCheckInterval
	ContextCheckInterval = 1
	defer func() { ContextCheckInterval = old }()

	in := writeTemp(t, "in.csv", "a\n1\n2\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FilterRow(ctx, FilterRowRequest{
		CSVPath: in, OutputPath: filepath.Join(t.TempDir(), "out.csv"), Delimiter: ',', Literal: "1",
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFilterRows(t *testing.T) {
	in := writeTemp(t, "in.csv", "id,city\n1,Oslo\n2,Bergen\n3,Osaka\n4,Lima\n")
	list := writeTemp(t, "list.txt", "Os\r\n\r\nLim\nOs\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	res, err := FilterRows(context.Background(), FilterRowsRequest{
		ListPath:   list,
		CSVPath:    in,
		OutputPath: out,
		Delimiter:  ',',
		Column:     1,
	})
	if err != nil {
		t.Fatalf("FilterRows: %v", err)
	}
	if res.RowsRead != 4 || res.RowsWritten != 3 {
		t.Errorf("result = %+v, want 4 read, 3 written", res)
	}
	if got, want := readFile(t, out), "id|city\n1|Oslo\n3|Osaka\n4|Lima\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFilterRows_EmptyList(t *testing.T) {
	in := writeTemp(t, "in.csv", "id\n1\n2\n")
	list := writeTemp(t, "list.txt", "\n\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	res, err := FilterRows(context.Background(), FilterRowsRequest{
		ListPath: list, CSVPath: in, OutputPath: out, Delimiter: ',',
	})
	if err != nil {
		t.Fatalf("FilterRows: %v", err)
	}
	if res.RowsWritten != 0 {
		t.Errorf("RowsWritten = %d, want 0", res.RowsWritten)
	}
	if got := readFile(t, out); got != "id\n" {
		t.Errorf("output = %q, want header only", got)
	}
}

func TestLoadList(t *testing.T) {
	path := writeTemp(t, "list.txt", "b\r\na\n\nb\n  c \n")

	got, err := LoadList(path)
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	want := []string{"b", "a", "  c "}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadList = %q, want %q", got, want)
	}

	if _, err := LoadList(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, ErrIO) {
		t.Errorf("missing list err = %v, want ErrIO", err)
	}
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchMode
		wantErr bool
	}{
		{"", MatchExact, false},
		{"exact", MatchExact, false},
		{"EQ", MatchExact, false},
		{"substring", MatchSubstring, false},
		{"contains", MatchSubstring, false},
		{"regex", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMatchMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMatchMode(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMatchMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
