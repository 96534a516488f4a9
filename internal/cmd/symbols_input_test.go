package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveSymbolsNormalizesAndDeduplicates(t *testing.T) {
	symbols, err := resolveSymbols([]string{"aapl", " msft ", "AAPL"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Fatalf("expected [AAPL MSFT], got %v", symbols)
	}
}

func TestResolveSymbolsRejectsBadInput(t *testing.T) {
	if _, err := resolveSymbols(nil, ""); err == nil {
		t.Fatal("expected error without symbols")
	}
	if _, err := resolveSymbols([]string{"9bad"}, ""); err == nil {
		t.Fatal("expected error for invalid symbol")
	}
	if _, err := resolveSymbols([]string{"AAPL"}, "symbols.txt"); err == nil {
		t.Fatal("expected error when combining positional symbols with --input")
	}
}

func TestReadSymbolsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	content := "# watch these\naapl\n\n  msft  \nAAPL\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	symbols, err := readSymbolsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Fatalf("expected [AAPL MSFT], got %v", symbols)
	}
}

func TestReadSymbolsFileReportsLineNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	if err := os.WriteFile(path, []byte("AAPL\n!!bad!!\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := readSymbolsFile(path)
	if err == nil {
		t.Fatal("expected error for invalid symbol")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestReadSymbolsFileRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := readSymbolsFile(path); err == nil {
		t.Fatal("expected error for file without symbols")
	}
}
