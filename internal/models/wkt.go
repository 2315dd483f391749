package models

import (
	"strconv"
	"strings"
)

// PointWKT renders a coordinate as well-known text. WKT orders longitude
// before latitude.
func PointWKT(lat, lon float64) string {
	var b strings.Builder
	b.WriteString("POINT(")
	b.WriteString(strconv.FormatFloat(lon, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(lat, 'f', -1, 64))
	b.WriteByte(')')
	return b.String()
}

// ParsePointWKT reads a POINT literal back into a coordinate pair. Returns
// false for anything that is not a two-coordinate point.
func ParsePointWKT(wkt string) (LatLon, bool) {
	s := strings.TrimSpace(wkt)
	if !strings.HasPrefix(strings.ToUpper(s), "POINT(") || !strings.HasSuffix(s, ")") {
		return LatLon{}, false
	}
	body := s[strings.Index(s, "(")+1 : len(s)-1]
	parts := strings.Fields(strings.ReplaceAll(body, ",", " "))
	if len(parts) != 2 {
		return LatLon{}, false
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return LatLon{}, false
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return LatLon{}, false
	}
	return LatLon{Lat: lat, Lon: lon}, true
}
