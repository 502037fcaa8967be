package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

const accountsTable = "accounts"

// knownKeys maps each table to the keys valid inside it. The empty table
// name is the top level.
var knownKeys = map[string]map[string]bool{
	"":        {"log_level": true, "network": true, "vault": true, "upload": true, accountsTable: true},
	"network": {"connect_timeout": true, "data_timeout": true, "user_agent": true},
	"vault":   {"backends": true, "file_dir": true},
	"upload":  {"default_path": true, "default_expire_days": true},
	accountsTable: {
		"origin": true, "username": true, "container_id": true, "container_name": true,
		"upload_path": true, "share_expire_days": true, "has_share_password": true,
	},
}

// knownKeysList is the sorted slice form of knownKeys for Levenshtein
// matching. Sorted for deterministic suggestions when two candidates have
// the same edit distance.
var knownKeysList = func() map[string][]string {
	out := make(map[string][]string, len(knownKeys))

	for table, keys := range knownKeys {
		list := make([]string, 0, len(keys))
		for k := range keys {
			list = append(list, k)
		}

		sort.Strings(list)
		out[table] = list
	}

	return out
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool)

	for _, key := range undecoded {
		err := buildKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, optionally
// suggesting the closest known key in the same table. Account sections are
// addressed as accounts.<id>.<key>.
func buildKeyError(key toml.Key) error {
	var table, field, where string

	switch {
	case len(key) >= 3 && key[0] == accountsTable:
		table, field = accountsTable, key[2]
		where = fmt.Sprintf(" in account %q", key[1])
	case len(key) == 2 && key[0] == accountsTable:
		return fmt.Errorf("account %q must be a table", key[1])
	case len(key) >= 2:
		table, field = key[0], key[1]
		where = fmt.Sprintf(" in [%s]", table)
	default:
		field = key[0]
	}

	if knownKeys[table][field] {
		return nil
	}

	if suggestion := closestMatch(field, knownKeysList[table]); suggestion != "" {
		return fmt.Errorf("unknown config key %q%s, did you mean %q?", field, where, suggestion)
	}

	return fmt.Errorf("unknown config key %q%s", strings.Join(key, "."), where)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
