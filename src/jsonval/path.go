package jsonval

import (
	"strconv"
	"strings"
)

// ExtractPath walks a dotted path such as "$.order.items.0.sku" and returns
// the value found there. The leading "$." prefix is optional. Numeric
// segments index into arrays. Any missing or non-traversable intermediate
// yields Null rather than an error.
func ExtractPath(v Value, path string) Value {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return v
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return Null()
		}
		switch cur.Kind() {
		case KindObject:
			f, ok := cur.Field(seg)
			if !ok {
				return Null()
			}
			cur = f
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.Items()) {
				return Null()
			}
			cur = cur.Items()[idx]
		default:
			return Null()
		}
	}
	return cur
}
