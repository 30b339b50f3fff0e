package domain

import "strconv"

// Placeholders lists the variables a recipe template may reference as ${name}.
var Placeholders = []string{
	"prefix",
	"store_prefix",
	"name",
	"version",
	"jobs",
	"os",
	"platform_version",
	"bits",
}

// PlaceholderValues returns the value of every placeholder for a recipe and snapshot.
func PlaceholderValues(r *Recipe, s Snapshot) map[string]string {
	return map[string]string{
		"prefix":           s.Prefix,
		"store_prefix":     s.StorePrefix,
		"name":             r.Name,
		"version":          r.Version,
		"jobs":             strconv.Itoa(s.Jobs),
		"os":               s.OS,
		"platform_version": s.PlatformVersion,
		"bits":             strconv.Itoa(s.Bits),
	}
}
