package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var jsonKeywordRe = regexp.MustCompile(`(?i)product|price|datalayer|data_layer`)

// JSONBlocks returns every decodable JSON value embedded in the document:
// ld+json blocks first, then any script content mentioning product/price/
// data-layer keywords whose body (or first {...} fragment) parses.
func (d *Document) JSONBlocks() []interface{} {
	var blocks []interface{}

	linkedData := make(map[string]bool)
	for _, text := range d.All("//script[@type='application/ld+json']", "") {
		linkedData[text] = true
		if v := decodeJSON(text); v != nil {
			blocks = append(blocks, v)
		}
	}

	for _, text := range d.ScriptTexts() {
		if linkedData[strings.TrimSpace(text)] || !jsonKeywordRe.MatchString(text) {
			continue
		}
		if v := decodeJSON(text); v != nil {
			blocks = append(blocks, v)
			continue
		}
		// try the first object-looking fragment inside the script
		if start := strings.Index(text, "{"); start >= 0 {
			if end := strings.LastIndex(text, "}"); end > start {
				if v := decodeJSON(text[start : end+1]); v != nil {
					blocks = append(blocks, v)
				}
			}
		}
	}

	return blocks
}

func decodeJSON(text string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil
	}
	return v
}

// WalkPath walks a dotted/bracket path (optional leading "$.") through a
// decoded JSON value and returns the scalar leaf as a string. A missing
// segment or a non-scalar leaf yields "".
func WalkPath(data interface{}, path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$.")
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return scalarString(data)
	}

	current := data
	for _, segment := range splitPath(path) {
		if current == nil {
			return ""
		}
		if idx, err := strconv.Atoi(segment); err == nil {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return ""
			}
			current = arr[idx]
			continue
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		next, exists := obj[segment]
		if !exists {
			return ""
		}
		current = next
	}

	return scalarString(current)
}

// splitPath turns "offers[0].price" into ["offers", "0", "price"].
func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	var segments []string
	for _, s := range strings.Split(path, ".") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
