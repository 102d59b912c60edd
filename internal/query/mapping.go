package query

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/variomes/configs"
)

// AgeGroup is one row of the age table. Bounds are inclusive years.
type AgeGroup struct {
	Term string
	ID   string
	Min  int
	Max  int
}

// ParseAgeTable reads a "term;id;min age;max age" table with a header line.
func ParseAgeTable(text string) ([]AgeGroup, error) {
	var groups []AgeGroup
	for i, fields := range mappingRows(text) {
		if len(fields) < 4 {
			return nil, fmt.Errorf("age table row %d: expected 4 columns, got %d", i+1, len(fields))
		}
		lo, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("age table row %d: min age: %w", i+1, err)
		}
		hi, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("age table row %d: max age: %w", i+1, err)
		}
		groups = append(groups, AgeGroup{Term: fields[0], ID: fields[1], Min: lo, Max: hi})
	}
	return groups, nil
}

// DefaultAgeTable returns the embedded age table.
func DefaultAgeTable() []AgeGroup {
	groups, err := ParseAgeTable(configs.MappingAge)
	if err != nil {
		panic(err)
	}
	return groups
}

// GroupsFor returns the terms of every group containing age.
func GroupsFor(groups []AgeGroup, age int) []string {
	var terms []string
	for _, g := range groups {
		if g.Min <= age && age <= g.Max {
			terms = append(terms, g.Term)
		}
	}
	return terms
}

// MappingIDs returns the id column of a "term;id;..." table.
func MappingIDs(text string) []string {
	var ids []string
	for _, fields := range mappingRows(text) {
		if len(fields) > 1 {
			ids = append(ids, fields[1])
		}
	}
	return ids
}

// AgeIDs lists the descriptors of the embedded age table.
func AgeIDs() []string { return MappingIDs(configs.MappingAge) }

// GenderIDs lists the descriptors of the embedded gender table.
func GenderIDs() []string { return MappingIDs(configs.MappingGender) }

// mappingRows splits a ";"-separated table, skipping the header line.
func mappingRows(text string) [][]string {
	var rows [][]string
	sc := bufio.NewScanner(strings.NewReader(text))
	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		parts := strings.Split(line, ";")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rows = append(rows, parts)
	}
	return rows
}
