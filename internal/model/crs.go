package model

import (
	"strconv"
	"strings"
)

// geographicCRS lists the lon/lat systems most often found in raw inputs.
var geographicCRS = map[string]bool{
	"EPSG:4326": true,
	"EPSG:4269": true,
	"EPSG:4267": true,
	"EPSG:4258": true,
	"OGC:CRS84": true,
	"CRS84":     true,
	"WGS84":     true,
}

// NormalizeCRS upper-cases a CRS code and strips surrounding whitespace.
func NormalizeCRS(crs string) string {
	return strings.ToUpper(strings.TrimSpace(crs))
}

// IsGeographic reports whether crs names a geographic (degree based) system.
func IsGeographic(crs string) bool {
	return geographicCRS[NormalizeCRS(crs)]
}

// SameCRS reports whether two CRS codes are compatible. An empty code means
// "unspecified" and matches anything.
func SameCRS(a, b string) bool {
	a, b = NormalizeCRS(a), NormalizeCRS(b)
	return a == "" || b == "" || a == b
}

// SRID extracts the numeric EPSG code from a CRS string like "EPSG:2272".
// Returns 0 when the code is not an EPSG reference.
func SRID(crs string) int {
	c := NormalizeCRS(crs)
	if !strings.HasPrefix(c, "EPSG:") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(c, "EPSG:"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
