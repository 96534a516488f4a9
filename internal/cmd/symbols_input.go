package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marketlens/marketlens/internal/core"
)

func resolveSymbols(positional []string, inputFile string) ([]string, error) {
	trimmed := strings.TrimSpace(inputFile)
	if trimmed != "" {
		if len(positional) > 0 {
			return nil, fmt.Errorf("cannot combine positional symbols with --input")
		}
		return readSymbolsFile(trimmed)
	}

	symbols := make([]string, 0, len(positional))
	for _, raw := range positional {
		symbol := core.NormalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		if err := validateSymbol(symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	return core.NormalizeSymbols(symbols), nil
}

func readSymbolsFile(path string) ([]string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck
		reader = file
	}

	symbols := make([]string, 0)
	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		symbol := core.NormalizeSymbol(raw)
		if err := validateSymbol(symbol); err != nil {
			return nil, fmt.Errorf("invalid symbol on line %d: %w", line, err)
		}
		symbols = append(symbols, symbol)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols found")
	}
	return core.NormalizeSymbols(symbols), nil
}
