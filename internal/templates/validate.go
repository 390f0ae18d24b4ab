package templates

import (
	"strings"
)

// ValidationError aggregates every mandatory field the merged record is
// missing, so an operator sees all problems at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "pol record validation failed"
	}
	return "pol record validation failed: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Fields the acquisitions API rejects a create-POL request without.
var mandatoryPaths = []string{
	"owner",
	"vendor",
	"vendor_account",
	"acquisition_method",
	"material_type",
	"price.sum",
	"price.currency",
	"resource_metadata.title",
	"fund_distribution",
}

func validate(fields map[string]any) error {
	issues := &ValidationError{}
	for _, path := range mandatoryPaths {
		if !present(fields, path) {
			issues.Add("missing mandatory field " + path)
		}
	}
	return issues.OrNil()
}

// present walks a dot path through nested maps; a field counts as present
// when it exists and is neither an empty string nor an empty collection.
func present(fields map[string]any, path string) bool {
	var cur any = fields
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[seg]
		if !ok {
			return false
		}
	}
	switch v := cur.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
