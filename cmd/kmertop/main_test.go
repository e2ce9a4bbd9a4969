package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const gattaca = "@read1\nGATTACAGATTACA\n+\nIIIIIIIIIIIIII\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestExecuteText(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	code, out, stderr := runCLI(t, "-f", input, "-k", "4", "-n", "3")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if want := "ATTA: 2\nGATT: 2\nTTAC: 2\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}

func TestExecuteTSV(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	code, out, stderr := runCLI(t, "--file-name", input, "--kmer-size", "4", "--most-frequent", "1", "--format", "tsv")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if want := "ATTA\t2\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}

func TestExecuteMappedFilter(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	work := t.TempDir()
	code, out, stderr := runCLI(t, "-f", input, "-k", "4", "-n", "3",
		"--filter-storage", "mmap", "--filter", "blocked", "--work-dir", work)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if want := "ATTA: 2\nGATT: 2\nTTAC: 2\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
	entries, err := os.ReadDir(work)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected the work dir to be empty, found %d entries", len(entries))
	}
}

func TestExecuteEveryFilterKind(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	for _, kind := range []string{"blocked", "bitset", "blob"} {
		code, out, stderr := runCLI(t, "-f", input, "-k", "4", "-n", "1", "--filter", kind)
		if code != exitOK {
			t.Fatalf("%s: exit %d: %s", kind, code, stderr)
		}
		if out != "ATTA: 2\n" {
			t.Errorf("%s: stdout = %q", kind, out)
		}
	}
}

func TestExecuteVerbose(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	code, out, stderr := runCLI(t, "-f", input, "-k", "4", "-n", "1", "-v")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if out != "ATTA: 2\n" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(stderr, "single-pass") {
		t.Errorf("expected the strategy to be logged, stderr = %q", stderr)
	}
}

func TestExecuteQuietByDefault(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	code, _, stderr := runCLI(t, "-f", input, "-k", "4", "-n", "1")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if stderr != "" {
		t.Errorf("expected nothing on stderr, got %q", stderr)
	}
}

func TestExecuteExitCodes(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)
	bad := writeFile(t, "bad.fq", ">read1\nGATTACA\n+\nIIIIIII\n")
	missing := filepath.Join(t.TempDir(), "missing.fq")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing file flag", []string{"-k", "4", "-n", "1"}, exitUsage},
		{"unknown flag", []string{"-f", input, "-k", "4", "-n", "1", "--bogus"}, exitUsage},
		{"non-numeric k", []string{"-f", input, "-k", "four", "-n", "1"}, exitUsage},
		{"positional argument", []string{"-f", input, "-k", "4", "-n", "1", "extra"}, exitUsage},
		{"zero k", []string{"-f", input, "-k", "0", "-n", "1"}, exitUsage},
		{"zero n", []string{"-f", input, "-k", "4", "-n", "0"}, exitUsage},
		{"error rate of one", []string{"-f", input, "-k", "4", "-n", "1", "-e", "1"}, exitUsage},
		{"zero disk", []string{"-f", input, "-k", "4", "-n", "1", "-d", "0"}, exitUsage},
		{"zero memory", []string{"-f", input, "-k", "4", "-n", "1", "-m", "0"}, exitUsage},
		{"unknown filter", []string{"-f", input, "-k", "4", "-n", "1", "--filter", "cuckoo"}, exitUsage},
		{"unknown storage", []string{"-f", input, "-k", "4", "-n", "1", "--filter-storage", "disk"}, exitUsage},
		{"unknown codec", []string{"-f", input, "-k", "4", "-n", "1", "--codec", "lz4"}, exitUsage},
		{"unknown format", []string{"-f", input, "-k", "4", "-n", "1", "--format", "json"}, exitUsage},
		{"unknown log level", []string{"-f", input, "-k", "4", "-n", "1", "--log-level", "loud"}, exitUsage},
		{"missing input", []string{"-f", missing, "-k", "4", "-n", "1"}, exitError},
		{"bad input", []string{"-f", bad, "-k", "4", "-n", "1"}, exitError},
		{"k longer than reads", []string{"-f", input, "-k", "40", "-n", "1"}, exitError},
		{"missing work dir", []string{"-f", input, "-k", "4", "-n", "1",
			"--filter-storage", "mmap", "--work-dir", filepath.Join(t.TempDir(), "missing")}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, stderr := runCLI(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit %d, want %d (stderr %q)", code, tt.code, stderr)
			}
			if out != "" {
				t.Errorf("expected no output on failure, got %q", out)
			}
			if !strings.HasPrefix(stderr, "error: ") {
				t.Errorf("expected an error message, got %q", stderr)
			}
		})
	}
}

func TestExecuteErrorNamesInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.fq")
	_, _, stderr := runCLI(t, "-f", missing, "-k", "4", "-n", "1")
	if !strings.Contains(stderr, missing) {
		t.Errorf("expected the error to name %s, got %q", missing, stderr)
	}
}

func TestExecuteConfigFile(t *testing.T) {
	input := writeFile(t, "reads.fq", gattaca)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "kmertop.yaml", fmt.Sprintf("file-name: %q\nkmer-size: 4\nmost-frequent: 3\nformat: tsv\n", input)},
		{"yml", "kmertop.yml", fmt.Sprintf("file-name: %q\nkmer-size: 4\nmost-frequent: 3\nformat: tsv\n", input)},
		{"toml", "kmertop.toml", fmt.Sprintf("file-name = %q\nkmer-size = 4\nmost-frequent = 3\nformat = \"tsv\"\n", input)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeFile(t, tt.file, tt.content)

			code, out, stderr := runCLI(t, "--config", cfg)
			if code != exitOK {
				t.Fatalf("exit %d: %s", code, stderr)
			}
			if want := "ATTA\t2\nGATT\t2\nTTAC\t2\n"; out != want {
				t.Errorf("stdout = %q, want %q", out, want)
			}

			code, out, stderr = runCLI(t, "--config", cfg, "-n", "1", "--format", "text")
			if code != exitOK {
				t.Fatalf("exit %d: %s", code, stderr)
			}
			if want := "ATTA: 2\n"; out != want {
				t.Errorf("flags should override the file: stdout = %q, want %q", out, want)
			}
		})
	}
}

func TestExecuteConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown yaml key", "bad.yaml", "kmer-size: 4\nmost-frequent: 1\ncolour: red\n"},
		{"unknown toml key", "bad.toml", "kmer-size = 4\ncolour = \"red\"\n"},
		{"malformed yaml", "bad.yaml", "kmer-size: [4\n"},
		{"wrong type", "bad.toml", "kmer-size = \"four\"\n"},
		{"unsupported extension", "bad.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeFile(t, tt.file, tt.content)
			if code, _, stderr := runCLI(t, "--config", cfg); code != exitUsage {
				t.Errorf("exit %d, want %d (stderr %q)", code, exitUsage, stderr)
			}
		})
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if code, _, _ := runCLI(t, "--config", missing); code != exitUsage {
		t.Errorf("missing config: exit %d, want %d", code, exitUsage)
	}
}
