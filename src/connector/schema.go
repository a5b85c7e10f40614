package connector

import (
	"github.com/wirebird/wirebird/src/jsonval"
	"github.com/wirebird/wirebird/src/schema"
	"github.com/wirebird/wirebird/src/template"
)

// InferInputSchema derives a string-typed object schema from the
// placeholder names referenced by the tool's request mapping: path,
// query, header, and body templates. Tools that reference no
// placeholders get an empty object schema.
func InferInputSchema(tool Tool) jsonval.Value {
	seen := map[string]bool{}
	var names []string
	add := func(text string) {
		for _, name := range template.Vars(text) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	add(tool.Path)
	for _, v := range tool.RequestMapping.PathParams {
		add(v)
	}
	for _, v := range tool.RequestMapping.QueryParams {
		add(v)
	}
	for _, v := range tool.RequestMapping.Headers {
		add(v)
	}
	collectValueVars(tool.RequestMapping.BodyTemplate, add)

	v, err := schema.ToValue(schema.StringObjectSchema(names))
	if err != nil {
		return jsonval.Null()
	}
	return v
}

func collectValueVars(v jsonval.Value, add func(string)) {
	switch v.Kind() {
	case jsonval.KindString:
		add(v.Str())
	case jsonval.KindObject:
		for _, name := range v.Fields() {
			f, _ := v.Field(name)
			collectValueVars(f, add)
		}
	case jsonval.KindArray:
		for _, item := range v.Items() {
			collectValueVars(item, add)
		}
	}
}
