// Package template implements the lightweight placeholder syntax used by
// prompts and connector definitions: {{name}} substitutes a variable and
// {{secret:name}} substitutes a tenant secret.
package template

import (
	"regexp"

	"github.com/wirebird/wirebird/src/jsonval"
)

var (
	varPattern    = regexp.MustCompile(`\{\{(\w+)\}\}`)
	secretPattern = regexp.MustCompile(`\{\{secret:(\w+)\}\}`)
)

// Resolve substitutes {{name}} placeholders with values from vars.
// Placeholders with no matching variable are left verbatim, so that a
// missing value is visible in the output instead of silently erased.
func Resolve(text string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return m
	})
}

// ResolveSecrets substitutes {{secret:name}} placeholders with values from
// secrets, leaving unknown references verbatim.
func ResolveSecrets(text string, secrets map[string]string) string {
	return secretPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := secretPattern.FindStringSubmatch(m)[1]
		if val, ok := secrets[name]; ok {
			return val
		}
		return m
	})
}

// Vars returns the distinct {{name}} placeholder names in text, in order
// of first appearance. Secret references are not included.
func Vars(text string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range varPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// ResolveValue walks a JSON value and applies Resolve to every string leaf.
// Non-string leaves pass through untouched.
func ResolveValue(v jsonval.Value, vars map[string]string) jsonval.Value {
	switch v.Kind() {
	case jsonval.KindString:
		return jsonval.String(Resolve(v.Str(), vars))
	case jsonval.KindObject:
		fields := make(map[string]jsonval.Value, len(v.Fields()))
		for _, name := range v.Fields() {
			f, _ := v.Field(name)
			fields[name] = ResolveValue(f, vars)
		}
		return jsonval.Object(fields)
	case jsonval.KindArray:
		items := make([]jsonval.Value, 0, len(v.Items()))
		for _, item := range v.Items() {
			items = append(items, ResolveValue(item, vars))
		}
		return jsonval.Array(items)
	default:
		return v
	}
}
