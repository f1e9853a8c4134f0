package jetnet

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// statusKeys name the envelope status field, vendor spelling first.
var statusKeys = []string{"responsestatus", "status"}

const (
	responseIDKey = "responseid"
	successToken  = "success"
)

// containerKeys is the priority-ordered list of result containers JetNet
// uses across endpoint families. The first one present wins.
var containerKeys = []string{
	"aircraftresult",
	"aircraftlist",
	"companyresult",
	"companylist",
	"contactresult",
	"contactlist",
	"modelresult",
	"modellist",
	"utilityresult",
	"eventlist",
	"historylist",
	"flightdata",
	"relationships",
	"pictures",
	"contacts",
	"phonenumbers",
	"businesstypes",
	"certifications",
	"relatedcompanies",
	"aircraftrelationships",
	"companyrelationships",
	"otherlistings",
	"accountinfo",
	"productcodes",
	"airframetypes",
	"maketypes",
	"weightclasses",
	"jniqsizes",
	"makes",
	"models",
	"relationshiptypes",
	"eventcategories",
	"eventtypes",
	"airports",
	"states",
	"countries",
	"lifecyclestatus",
	"transactiontypes",
}

var paginationKeys = []string{"page", "pagesize", "totalcount", "totalpages"}

// Pagination is the page metadata of a paged response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// Page is a paged array result: the items plus the metadata that came
// alongside them.
type Page struct {
	Items      []any      `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Normalize unwraps a decoded JSON response into its payload. It is pure and
// idempotent: normalized values carry no status field, so a second pass
// returns them unchanged.
func Normalize(raw any) any {
	switch v := raw.(type) {
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = Normalize(el)
		}
		return out
	case map[string]any:
		return normalizeObject(v)
	default:
		return raw
	}
}

func normalizeObject(obj map[string]any) any {
	statusKey, status, ok := statusOf(obj)
	if !ok {
		return obj
	}
	if !isSuccess(status) {
		return obj
	}

	for _, key := range containerKeys {
		if val, present := obj[key]; present {
			return Normalize(val)
		}
	}

	if hasPagination(obj) {
		if key, single := singleDataKey(obj, statusKey); single {
			val := obj[key]
			if items, isArray := val.([]any); isArray {
				normalized, _ := Normalize(items).([]any)
				return Page{Items: normalized, Pagination: paginationOf(obj)}
			}
			// A single non-array payload loses its page metadata.
			return Normalize(val)
		}
	}

	stripped := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == responseIDKey || isStatusField(k, v, statusKey) {
			continue
		}
		stripped[k] = v
	}
	if len(stripped) == 1 {
		for _, v := range stripped {
			return Normalize(v)
		}
	}
	return stripped
}

// statusOf returns the status field of obj. Only string values count; a
// non-string status field is treated as ordinary data.
func statusOf(obj map[string]any) (string, string, bool) {
	for _, key := range statusKeys {
		if raw, present := obj[key]; present {
			if s, isString := raw.(string); isString {
				return key, s, true
			}
		}
	}
	return "", "", false
}

// isStatusField reports whether k is envelope status: the chosen status key,
// or the other spelling when it also carries the success token.
func isStatusField(k string, v any, statusKey string) bool {
	if k == statusKey {
		return true
	}
	for _, key := range statusKeys {
		if k == key {
			s, isString := v.(string)
			return isString && isSuccess(s)
		}
	}
	return false
}

func isSuccess(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), successToken)
}

func hasPagination(obj map[string]any) bool {
	for _, key := range paginationKeys[:3] {
		if _, present := obj[key]; present {
			return true
		}
	}
	return false
}

func singleDataKey(obj map[string]any, statusKey string) (string, bool) {
	var found string
	count := 0
	for k := range obj {
		if k == responseIDKey || isPaginationKey(k) || isStatusField(k, obj[k], statusKey) {
			continue
		}
		found = k
		count++
	}
	return found, count == 1
}

func isPaginationKey(k string) bool {
	for _, p := range paginationKeys {
		if k == p {
			return true
		}
	}
	return false
}

func paginationOf(obj map[string]any) Pagination {
	return Pagination{
		Page:       asInt(obj["page"]),
		PageSize:   asInt(obj["pagesize"]),
		TotalCount: asInt(obj["totalcount"]),
		TotalPages: asInt(obj["totalpages"]),
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(math.Trunc(f))
		}
	case float64:
		return int(math.Trunc(n))
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}
