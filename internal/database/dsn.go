package database

import "sort"

// mergeOptions overlays per-deployment overrides on a driver's defaults and
// renders the result as key=value pairs in a stable order, so the same
// configuration always yields the same DSN.
func mergeOptions(defaults map[string]string, overrides map[string]string) []string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+merged[key])
	}
	return pairs
}

func hostOrDefault(host, fallback string) string {
	if host == "" {
		return fallback
	}
	return host
}

func portOrDefault(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}
