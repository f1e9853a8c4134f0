package jetnet

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed operations.yaml
var operationsYAML []byte

var placeholderRe = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9]*)\}`)

// Operation is one (resource, operation) entry of the catalog.
type Operation struct {
	Resource    string `yaml:"-" json:"resource"`
	Name        string `yaml:"name" json:"operation"`
	Method      string `yaml:"method" json:"method"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description" json:"description"`
	BodyName    string `yaml:"body" json:"body,omitempty"`

	template map[string]any
	fieldMap map[string]string
}

// Resource groups the operations of one JetNet resource family.
type Resource struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Operations  []*Operation `yaml:"operations" json:"operations"`
}

type catalogFile struct {
	Bodies    map[string]map[string]any    `yaml:"bodies"`
	FieldMaps map[string]map[string]string `yaml:"fieldMaps"`
	Resources []*Resource                  `yaml:"resources"`
}

// Catalog maps (resource, operation) to a request template.
type Catalog struct {
	resources []*Resource
	index     map[string]*Operation
}

// LoadCatalog parses the embedded operation table.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(operationsYAML)
}

// ParseCatalog parses an operation table in the operations.yaml format.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{resources: f.Resources, index: make(map[string]*Operation)}
	for _, r := range f.Resources {
		if r.Name == "" {
			return nil, fmt.Errorf("parse catalog: resource without name")
		}
		for _, op := range r.Operations {
			op.Resource = r.Name
			op.Method = strings.ToUpper(op.Method)
			if op.Name == "" || op.Path == "" {
				return nil, fmt.Errorf("parse catalog: %s has an operation without name or path", r.Name)
			}
			switch op.Method {
			case "GET", "POST", "PUT", "DELETE":
			default:
				return nil, fmt.Errorf("parse catalog: %s.%s has unsupported method %q", r.Name, op.Name, op.Method)
			}
			if op.BodyName != "" {
				tmpl, ok := f.Bodies[op.BodyName]
				if !ok {
					return nil, fmt.Errorf("parse catalog: %s.%s references unknown body %q", r.Name, op.Name, op.BodyName)
				}
				op.template = tmpl
				op.fieldMap = f.FieldMaps[op.BodyName]
			}
			key := catalogKey(r.Name, op.Name)
			if _, dup := c.index[key]; dup {
				return nil, fmt.Errorf("parse catalog: duplicate operation %s", key)
			}
			c.index[key] = op
		}
	}
	return c, nil
}

func catalogKey(resource, operation string) string {
	return resource + "." + operation
}

// Lookup returns the operation, or false when unknown.
func (c *Catalog) Lookup(resource, operation string) (*Operation, bool) {
	op, ok := c.index[catalogKey(resource, operation)]
	return op, ok
}

// Resources returns the resource groups in table order.
func (c *Catalog) Resources() []*Resource {
	return c.resources
}

// Operations returns the operation names of resource in table order.
func (c *Catalog) Operations(resource string) []string {
	for _, r := range c.resources {
		if r.Name != resource {
			continue
		}
		names := make([]string, 0, len(r.Operations))
		for _, op := range r.Operations {
			names = append(names, op.Name)
		}
		return names
	}
	return nil
}

// Len is the number of operations.
func (c *Catalog) Len() int { return len(c.index) }

// Description returns the catalog description of resource.operation, or a
// generic one for unknown pairs.
func (c *Catalog) Description(resource, operation string) string {
	if op, ok := c.Lookup(resource, operation); ok && op.Description != "" {
		return op.Description
	}
	return fmt.Sprintf("Execute %s on %s resource", operation, resource)
}

// PathParams lists the placeholders of the operation path.
func (o *Operation) PathParams() []string {
	matches := placeholderRe.FindAllStringSubmatch(o.Path, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Build renders the request for params (path placeholders) and fields
// (body filters). GET requests carry no body. POST bodies start from the
// named template; with a field map only mapped fields are applied, renamed
// to the vendor spelling, otherwise fields are merged as given.
func (o *Operation) Build(params, fields map[string]any) (method, endpoint string, body any, err error) {
	var missing []string
	endpoint = placeholderRe.ReplaceAllStringFunc(o.Path, func(ph string) string {
		name := ph[1 : len(ph)-1]
		v, ok := paramString(params[name])
		if !ok {
			missing = append(missing, name)
			return ph
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", "", nil, &ParamError{Resource: o.Resource, Operation: o.Name, Missing: missing}
	}

	if o.Method == "GET" || o.Method == "DELETE" {
		return o.Method, endpoint, nil, nil
	}

	out := deepCopy(o.template)
	if out == nil {
		out = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if o.fieldMap != nil {
			vendorKey, ok := o.fieldMap[k]
			if !ok {
				continue
			}
			k = vendorKey
		}
		out[k] = v
	}
	return o.Method, endpoint, out, nil
}

// ParamError reports required path parameters that were not supplied.
type ParamError struct {
	Resource  string
	Operation string
	Missing   []string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s.%s: missing required parameter(s): %s", e.Resource, e.Operation, strings.Join(e.Missing, ", "))
}

func paramString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprint(x), true
	}
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopy(x)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = copyValue(el)
		}
		return out
	default:
		return v
	}
}
