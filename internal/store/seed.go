package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tally/internal/core"
)

// SeedFile is the registry seed read from the seed data directory.
const SeedFile = "seed_categories.txt"

var defaultCategories = []core.Category{
	{Name: "Salary", Type: core.Income},
	{Name: "Freelance", Type: core.Income},
	{Name: "Groceries", Type: core.Expense},
	{Name: "Rent", Type: core.Expense},
	{Name: "Transport", Type: core.Expense},
	{Name: "Utilities", Type: core.Expense},
}

// SeedCategories reads "type:name" lines from base/seed_categories.txt.
// A missing or empty file yields the built-in defaults.
func SeedCategories(base string) []core.Category {
	var out []core.Category
	if base != "" {
		out = parseSeed(readLines(filepath.Join(base, SeedFile)))
	}
	if len(out) == 0 {
		out = append(out, defaultCategories...)
	}
	return out
}

// ApplySeed inserts cats into the registry of a new user.
func ApplySeed(ctx context.Context, t Table[core.Category, core.CategoryPatch], userID string, cats []core.Category) error {
	for _, c := range cats {
		if _, err := t.Insert(ctx, userID, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	return nil
}

func parseSeed(lines []string) []core.Category {
	out := make([]core.Category, 0, len(lines))
	for _, line := range lines {
		typ, name, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		c := core.Category{Name: strings.TrimSpace(name), Type: core.TransactionType(strings.TrimSpace(typ))}
		if c.Validate() != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
