package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lorena-ssi/wallet-fs/pkg/wallet"
)

// parseAssignments parses name=value arguments into a record. A value that
// is valid JSON keeps its JSON type (numbers, booleans, null, objects,
// arrays); anything else is taken as a plain string.
func parseAssignments(args []string) (wallet.Record, error) {
	record := make(wallet.Record, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field format %q (expected name=value)", arg)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid field format %q (empty name)", arg)
		}
		if _, dup := record[name]; dup {
			return nil, fmt.Errorf("field %q given more than once", name)
		}
		record[name] = parseValue(raw)
	}
	return record, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// parsePredicate parses --where arguments. At least one is required.
func parsePredicate(args []string) (wallet.Predicate, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one --where name=value is required")
	}
	fields, err := parseAssignments(args)
	if err != nil {
		return nil, err
	}
	return wallet.PredicateFrom(fields), nil
}

// parseDuration parses a duration string like "30d", "1y", "24h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}

	switch unit {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}
