package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestMergeCSV(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.csv":     "id,v\n1,a\n2,b\n",
		"b.CSV":     "id,v\n3,c\n",
		"empty.csv": "",
		"notes.txt": "id,v\n9,z\n",
	})
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "merged.csv")

	res, err := MergeCSV(context.Background(), MergeRequest{FolderPath: dir, OutputPath: out, Delimiter: ','})
	if err != nil {
		t.Fatalf("MergeCSV: %v", err)
	}

	names := make([]string, len(res.Files))
	for i, f := range res.Files {
		names[i] = filepath.Base(f)
	}
	sort.Strings(names)
	if got, want := strings.Join(names, ","), "a.csv,b.CSV,empty.csv"; got != want {
		t.Errorf("files = %s, want %s", got, want)
	}
	if res.RowsWritten != 3 {
		t.Errorf("RowsWritten = %d, want 3", res.RowsWritten)
	}

	// Directory order is not fixed, so compare the header and the record set
	lines := strings.Split(strings.TrimSuffix(readFile(t, out), "\n"), "\n")
	if lines[0] != "id|v" {
		t.Errorf("header = %q, want %q", lines[0], "id|v")
	}
	body := append([]string(nil), lines[1:]...)
	sort.Strings(body)
	if got, want := strings.Join(body, ";"), "1|a;2|b;3|c"; got != want {
		t.Errorf("records = %s, want %s", got, want)
	}
}

func TestMergeCSV_HeaderFromFirstFileWithHeader(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"empty.csv": "",
		"a.csv":     "first\n1\n",
		"b.csv":     "second\n2\n",
	})

	// Work out the enumeration order the merge will see.
	d, err := os.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := d.ReadDir(-1)
	d.Close()
	if err != nil {
		t.Fatal(err)
	}
	headers := map[string]string{"a.csv": "first", "b.csv": "second"}
	var wantHeader string
	for _, e := range entries {
		if h, ok := headers[e.Name()]; ok {
			wantHeader = h
			break
		}
	}

	out := filepath.Join(t.TempDir(), "merged.csv")
	res, err := MergeCSV(context.Background(), MergeRequest{FolderPath: dir, OutputPath: out, Delimiter: ','})
	if err != nil {
		t.Fatalf("MergeCSV: %v", err)
	}
	if len(res.Files) != 3 {
		t.Errorf("files = %v, want 3", res.Files)
	}

	lines := strings.Split(strings.TrimSuffix(readFile(t, out), "\n"), "\n")
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}
	body := append([]string(nil), lines[1:]...)
	sort.Strings(body)
	if got := strings.Join(body, ";"); got != "1;2" {
		t.Errorf("records = %s, want 1;2 with the second header consumed", got)
	}
}

func TestMergeCSV_SkipsOutputInFolder(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.csv":      "h\n1\n",
		"merged.csv": "h\nstale\n",
	})
	out := filepath.Join(dir, "merged.csv")

	res, err := MergeCSV(context.Background(), MergeRequest{FolderPath: dir, OutputPath: out, Delimiter: ','})
	if err != nil {
		t.Fatalf("MergeCSV: %v", err)
	}
	if len(res.Files) != 1 {
		t.Errorf("files = %v, want only a.csv", res.Files)
	}
	if got := readFile(t, out); got != "h\n1\n" {
		t.Errorf("output = %q", got)
	}
}

func TestMergeCSV_EmptyFolder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "merged.csv")

	res, err := MergeCSV(context.Background(), MergeRequest{FolderPath: dir, OutputPath: out, Delimiter: ','})
	if err != nil {
		t.Fatalf("MergeCSV: %v", err)
	}
	if len(res.Files) != 0 || res.RowsWritten != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if got := readFile(t, out); got != "" {
		t.Errorf("output = %q, want empty file", got)
	}
}

func TestMergeCSV_Errors(t *testing.T) {
	t.Run("missing folder", func(t *testing.T) {
		_, err := MergeCSV(context.Background(), MergeRequest{
			FolderPath: filepath.Join(t.TempDir(), "nope"),
			OutputPath: filepath.Join(t.TempDir(), "out.csv"),
			Delimiter:  ',',
		})
		if !errors.Is(err, ErrIO) {
			t.Errorf("err = %v, want ErrIO", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := writeDir(t, map[string]string{"bad.csv": "a,b\n1\n"})
		_, err := MergeCSV(context.Background(), MergeRequest{
			FolderPath: dir,
			OutputPath: filepath.Join(t.TempDir(), "out.csv"),
			Delimiter:  ',',
		})
		if !errors.Is(err, ErrFormat) {
			t.Errorf("err = %v, want ErrFormat", err)
		}
	})
}
