package terrain

import (
	"strconv"
	"strings"
)

var headerKeys = map[string]bool{
	"ncols":        true,
	"nrows":        true,
	"xllcorner":    true,
	"yllcorner":    true,
	"xllcenter":    true,
	"yllcenter":    true,
	"cellsize":     true,
	"nodata_value": true,
}

// ParseAAIGridElevationM extracts the first data value from an Esri ASCII
// grid response. Returns false when the grid is empty or only carries
// nodata cells.
func ParseAAIGridElevationM(text string) (float64, bool) {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	var nodata *float64
	dataStart := 0
	for idx, line := range lines {
		parts := strings.Fields(line)
		if len(parts) >= 2 && strings.ToLower(parts[0]) == "nodata_value" {
			if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
				nodata = &v
			}
		}
		if len(parts) >= 2 && headerKeys[strings.ToLower(parts[0])] {
			dataStart = idx + 1
			continue
		}
		break
	}

	for _, line := range lines[dataStart:] {
		for _, token := range strings.Fields(line) {
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				continue
			}
			if nodata != nil && v == *nodata {
				continue
			}
			return v, true
		}
	}
	return 0, false
}
