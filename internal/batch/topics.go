package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/variomes/internal/config"
)

// splitTopics splits a genvars parameter into one topic per ";" item.
func splitTopics(genVars string) []string {
	return config.SplitParam(genVars, ";")
}

// ReadTopicFile reads an uploaded variant list of gene<TAB>variant lines
// and returns one "gene (variant)" topic per line. name is resolved inside
// dir only.
func ReadTopicFile(dir, name string) ([]string, string, error) {
	if name == "" || name != filepath.Base(name) || name == ".." {
		return nil, name, fmt.Errorf("invalid variant file name %q", name)
	}
	path := filepath.Join(dir, name+".txt")

	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	defer f.Close()

	var topics []string
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		gene, variant, ok := strings.Cut(text, "\t")
		if !ok || strings.Contains(variant, "\t") {
			return nil, path, fmt.Errorf("line %d: expected gene<TAB>variant", line)
		}
		topics = append(topics, strings.TrimSpace(gene)+" ("+strings.TrimSpace(variant)+")")
	}
	if err := scanner.Err(); err != nil {
		return nil, path, err
	}
	return topics, path, nil
}
