package jetnet

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog()
	require.NoError(t, err)
	return c
}

func TestLoadCatalog_Counts(t *testing.T) {
	c := loadCatalog(t)

	var names []string
	for _, r := range c.Resources() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"aircraft", "company", "contact", "market"}, names)

	assert.Len(t, c.Operations("aircraft"), 29)
	assert.Len(t, c.Operations("company"), 11)
	assert.Len(t, c.Operations("contact"), 7)
	assert.Len(t, c.Operations("market"), 21)
	assert.Equal(t, 68, c.Len())
	assert.Nil(t, c.Operations("airport"))
}

func TestBuild_Endpoints(t *testing.T) {
	c := loadCatalog(t)
	tests := []struct {
		resource, operation string
		params              map[string]any
		wantMethod          string
		wantEndpoint        string
	}{
		{"aircraft", "get", map[string]any{"aircraftId": 123}, http.MethodGet, "/api/Aircraft/getAircraft/123"},
		{"aircraft", "getAPU", map[string]any{"aircraftId": json.Number("9")}, http.MethodGet, "/api/Aircraft/getApu/9"},
		{"aircraft", "getCompanyRelationships", map[string]any{"aircraftId": "77"}, http.MethodGet, "/api/Aircraft/getCompanyrelationships/77"},
		{"aircraft", "getByRegistration", map[string]any{"registrationNumber": "N 1GS"}, http.MethodGet, "/api/Aircraft/getRegNumber/N%201GS"},
		{"aircraft", "getEventListPaged", map[string]any{"pageSize": 100, "page": 2.0}, http.MethodPost, "/api/Aircraft/getEventListPaged/100/2"},
		{"company", "getAircraftRelationships", map[string]any{"companyId": 5}, http.MethodGet, "/api/Company/getAircraftrelationships/5"},
		{"contact", "getAircraftRelationships", map[string]any{"contactId": 8}, http.MethodGet, "/api/Contact/getContAircraftRelationships/8"},
		{"contact", "getOtherListings", map[string]any{"contactId": 8}, http.MethodGet, "/api/Contact/getOtherlistings/8"},
		{"market", "getAccountInfo", nil, http.MethodGet, "/api/Utility/getAccountInfo"},
		{"market", "getModelIntelligence", nil, http.MethodPost, "/api/Model/getModelIntelligence"},
	}
	for _, tt := range tests {
		t.Run(tt.resource+"."+tt.operation, func(t *testing.T) {
			op, ok := c.Lookup(tt.resource, tt.operation)
			require.True(t, ok)
			method, endpoint, _, err := op.Build(tt.params, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantEndpoint, endpoint)
		})
	}
}

func TestBuild_MissingParams(t *testing.T) {
	c := loadCatalog(t)
	op, _ := c.Lookup("company", "getCompanyHistoryPaged")

	_, _, _, err := op.Build(map[string]any{"page": 1, "pageSize": ""}, nil)
	var pe *ParamError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"pageSize"}, pe.Missing)
	assert.Equal(t, "company.getCompanyHistoryPaged: missing required parameter(s): pageSize", err.Error())
}

func TestBuild_GetHasNoBody(t *testing.T) {
	c := loadCatalog(t)
	op, _ := c.Lookup("aircraft", "get")
	_, _, body, err := op.Build(map[string]any{"aircraftId": 1}, map[string]any{"ignored": true})
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestBuild_AircraftListMergesTemplate(t *testing.T) {
	c := loadCatalog(t)
	op, _ := c.Lookup("aircraft", "getList")

	_, _, body, err := op.Build(nil, map[string]any{"modelid": 278, "forsale": "true"})
	require.NoError(t, err)
	b, _ := json.Marshal(body)
	assert.JSONEq(t, `{
		"aircraftid": 0, "airframetype": "None", "maketype": "None", "modelid": 278,
		"make": "", "companyid": 0, "isnewaircraft": "Ignore", "allrelationships": true,
		"forsale": "true"
	}`, string(b))

	// The template itself must stay untouched.
	_, _, again, _ := op.Build(nil, nil)
	assert.Equal(t, 0, again.(map[string]any)["modelid"])
}

func TestBuild_ContactListRenamesFields(t *testing.T) {
	c := loadCatalog(t)
	op, _ := c.Lookup("contact", "getListPaged")

	method, endpoint, body, err := op.Build(
		map[string]any{"pageSize": 25, "page": 1},
		map[string]any{"firstName": "Ada", "companyId": 42, "contactList": []any{1, 2}, "unknown": "dropped"},
	)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/Contact/getContactListPaged/25/1", endpoint)

	m := body.(map[string]any)
	assert.Equal(t, "Ada", m["firstname"])
	assert.Equal(t, 42, m["companyid"])
	assert.Equal(t, []any{1, 2}, m["contlist"])
	assert.Equal(t, "", m["lastname"])
	assert.NotContains(t, m, "unknown")
	assert.NotContains(t, m, "firstName")
}

func TestBuild_MarketBodyIsFields(t *testing.T) {
	c := loadCatalog(t)
	op, _ := c.Lookup("market", "getModelMarketTrends")

	_, _, body, err := op.Build(nil, map[string]any{"modelid": 145})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"modelid": 145}, body)

	_, _, empty, err := op.Build(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, empty, "POST without fields still sends an object")
}

func TestDescription(t *testing.T) {
	c := loadCatalog(t)
	assert.Equal(t, "Get all aircraft data by ID", c.Description("aircraft", "get"))
	assert.Equal(t, "Execute getFoo on widget resource", c.Description("widget", "getFoo"))
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "resources: [", "parse catalog"},
		{"unknown body", "resources:\n  - name: a\n    operations:\n      - {name: x, method: POST, path: /x, body: nope}\n", "unknown body"},
		{"bad method", "resources:\n  - name: a\n    operations:\n      - {name: x, method: PATCHY, path: /x}\n", "unsupported method"},
		{"duplicate", "resources:\n  - name: a\n    operations:\n      - {name: x, method: GET, path: /x}\n      - {name: x, method: GET, path: /y}\n", "duplicate operation a.x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
