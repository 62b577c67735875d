package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odatagate/internal/dispatch"
	"odatagate/internal/sample"
	"odatagate/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	ctrls, err := sample.Memory()
	require.NoError(t, err)
	b := service.NewBuilder("Demo", JSONDecoder{}, nil)
	require.NoError(t, sample.Register(b, ctrls))
	svc, err := b.Build()
	require.NoError(t, err)
	return NewRouter(svc, "/odata", nil)
}

func do(t *testing.T, r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func TestServiceDocument(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/odata/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "http://example.com/odata/$metadata", body["@odata.context"])

	var names []string
	for _, v := range body["value"].([]any) {
		names = append(names, v.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"People", "Companies", "Projects"}, names)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestMetadataDocument(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/odata/$metadata", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4.0", w.Header().Get("OData-Version"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, w.Body.String(), `<EntitySet Name="People" EntityType="org.sample.Person">`)
	assert.Contains(t, w.Body.String(), `<EntityContainer Name="Demo">`)
}

func TestReadCollectionAndEntity(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/odata/People", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeJSON, w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Equal(t, "http://example.com/odata/$metadata#People", body["@odata.context"])
	require.Len(t, body["value"], 2)

	w = do(t, r, http.MethodGet, "/odata/People(1)", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	ada := decode(t, w)
	assert.Equal(t, "http://example.com/odata/$metadata#People/$entity", ada["@odata.context"])
	assert.Equal(t, float64(1), ada["id"])
	assert.Equal(t, "Ada", ada["name"])
	assert.Equal(t, "ada@example.org", ada["email"])
	assert.Equal(t, "Director", ada["role"])
	assert.Equal(t, []any{"math", "code"}, ada["tags"])
	assert.Equal(t, "2021-03-01T09:00:00Z", ada["joined"])
	assert.Equal(t, "PT8H", ada["shift"])
	assert.NotContains(t, ada, "employer")
	assert.NotContains(t, ada, "Internal")

	// properties keep schema order
	assert.Less(t, strings.Index(w.Body.String(), `"id"`), strings.Index(w.Body.String(), `"name"`))
}

func TestReadCaseInsensitiveSet(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/odata/people(2)", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Charles", decode(t, w)["name"])
}

func TestReadGuidKey(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/odata/Projects(5f2b6c1e-8d55-4d8e-9f6a-0c9a3e7d1b42)", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Notes on the Engine", body["title"])
	assert.Equal(t, "5f2b6c1e-8d55-4d8e-9f6a-0c9a3e7d1b42", body["id"])
}

func TestReadErrors(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/odata/People(99)", http.StatusNotFound, "not_found"},
		{"/odata/Nobody", http.StatusNotFound, "not_found"},
		{"/odata/People('x')", http.StatusBadRequest, "bad_request"},
		{"/odata/People(id=1,code=2)", http.StatusBadRequest, "bad_request"},
		{"/odata/People(1", http.StatusBadRequest, "bad_request"},
		{"/odata/People(1)/$count", http.StatusNotImplemented, "not_implemented"},
		{"/odata/People(1)/employer", http.StatusNotImplemented, "not_implemented"},
		{"/odata/People(1)/name", http.StatusNotImplemented, "not_implemented"},
		{"/odata/People(1)/nothing", http.StatusNotFound, "not_found"},
		{"/odata/$count", http.StatusNotImplemented, "not_implemented"},
		{"/odata/$ref", http.StatusNotImplemented, "not_implemented"},
		{"/odata/$value", http.StatusNotImplemented, "not_implemented"},
		{"/odata/$root", http.StatusNotImplemented, "not_implemented"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, r, http.MethodGet, tc.path, "", "")
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestCreate(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/odata/People", "application/json",
		`{"name":"Grace","role":"Engineer","tags":["navy"],"shift":"PT1H30M"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "http://example.com/odata/People(3)", w.Header().Get("Location"))
	body := decode(t, w)
	assert.Equal(t, float64(3), body["id"])
	assert.Equal(t, "Engineer", body["role"])
	assert.Equal(t, "PT1H30M", body["shift"])
	assert.Nil(t, body["email"])

	w = do(t, r, http.MethodGet, "/odata/People", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["value"], 3)
}

func TestCreateGeneratesGuidKey(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/odata/Projects", "application/json", `{"title":"Loom","budget":10}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)
	assert.Len(t, id, 36)
	assert.True(t, strings.HasSuffix(w.Header().Get("Location"), "/Projects("+id+")"))
}

func TestCreateErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/odata/People", "application/json", `{"role":"Engineer","age":3}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	e := decode(t, w)["error"].(map[string]any)
	codes := map[string]string{}
	for _, d := range e["details"].([]any) {
		m := d.(map[string]any)
		codes[m["field"].(string)] = m["code"].(string)
	}
	assert.Equal(t, ErrUnknownField, codes["age"])
	assert.Equal(t, ErrRequired, codes["name"])

	w = do(t, r, http.MethodPost, "/odata/People", "application/json", `{"name":"X","role":"Pilot"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/odata/People", "application/json", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/odata/People", "text/plain", `{"name":"X","role":"Engineer"}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = do(t, r, http.MethodPost, "/odata/People(1)", "application/json", `{"name":"X","role":"Engineer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/odata/Companies", "application/json", `{"id":1,"name":"Copy"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorCode(t, w))
}

func TestPatchMerges(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPatch, "/odata/People(2)", "application/json", `{"email":"c@example.org","id":7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(2), body["id"])
	assert.Equal(t, "Charles", body["name"])
	assert.Equal(t, "Manager", body["role"])
	assert.Equal(t, "c@example.org", body["email"])
}

func TestPutReplaces(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPut, "/odata/People(1)", "application/json", `{"name":"Augusta","role":"Engineer"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Augusta", body["name"])
	assert.Nil(t, body["email"])
	assert.Nil(t, body["tags"])

	w = do(t, r, http.MethodPut, "/odata/People(1)", "application/json", `{"name":"Augusta"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/odata/People(42)", "application/json", `{"name":"A","role":"Engineer"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodDelete, "/odata/People(1)", "", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(t, r, http.MethodGet, "/odata/People(1)", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/odata/People(1)", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/odata/People", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayloadTooLarge(t *testing.T) {
	r := newTestRouter(t)

	big := `{"name":"` + strings.Repeat("x", maxPayloadBytes) + `","role":"Engineer"}`
	w := do(t, r, http.MethodPost, "/odata/People", "application/json", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestIDPassThrough(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/odata/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}

func TestMetaEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/meta", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Contains(t, list, map[string]any{"namespace": "org.sample", "entity": "Person", "entitySet": "People"})

	w = do(t, r, http.MethodGet, "/api/meta/org.sample/person", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Person", body["entity"])
	assert.Equal(t, []any{"id"}, body["key"])
	assert.Equal(t, "sample.Person", body["hostType"])

	navs := map[string]string{}
	for _, n := range body["navigation"].([]any) {
		m := n.(map[string]any)
		navs[m["name"].(string)] = m["relation"].(string)
	}
	assert.Equal(t, "manyToOne", navs["employer"])
	assert.Equal(t, "manyToMany", navs["projects"])

	w = do(t, r, http.MethodGet, "/api/meta/org.sample/Robot", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/enums", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLint(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/lint", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issues":[]}`, w.Body.String())
}

type slot struct {
	Rack    int64    `odata:"rack,key"`
	Row     int64    `odata:"row,key"`
	Devices []device `odata:"devices,oneToMany,mappedBy=slot"`
}

type device struct {
	ID   int64 `odata:"id,key"`
	Slot *slot `odata:"slot,manyToOne"`
}

type keyOnly struct{}

func (keyOnly) Read(context.Context, dispatch.Keys) (*device, error) { return nil, nil }
func (keyOnly) Create(_ context.Context, d *device) (*device, error) { return d, nil }
func (keyOnly) Update(_ context.Context, d *device) (*device, error) { return d, nil }
func (keyOnly) Delete(context.Context, *device) (bool, error)        { return false, nil }

func TestLintReportsIssues(t *testing.T) {
	b := service.NewBuilder("Demo", JSONDecoder{}, nil)
	require.NoError(t, service.AddEntity[slot](b, "org.rack", "Slot", "Slots"))
	require.NoError(t, service.Register[device](b, "org.rack", "Device", "Devices", keyOnly{}))
	svc, err := b.Build()
	require.NoError(t, err)

	h := NewHandler(svc, "/odata", nil)
	assert.Equal(t, []SchemaIssue{
		{Entity: "org.rack.Device", Code: IssueNotListable, Message: "controller does not implement listing; reads without a key fail with 501"},
		{Entity: "org.rack.Device", Field: "slot", Code: IssueCompositeRefKey, Message: "org.rack.Slot has a composite key; the reference is not stored in PostgreSQL"},
		{Entity: "org.rack.Slot", Code: IssueNoController, Message: "no controller bound; every request against the entity set fails with 501"},
	}, h.SchemaLint())

	w := do(t, NewRouter(svc, "/odata", nil), http.MethodGet, "/odata/Devices", "", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
