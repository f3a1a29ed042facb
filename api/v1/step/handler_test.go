package step

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"go_provision/internal/httpx"
)

// Missing-field validation must reject before any service is touched, so the
// handlers here run with nil dependencies.
func postJSON(t *testing.T, handler gin.HandlerFunc, body string) (*httptest.ResponseRecorder, httpx.Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/x", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp httpx.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	return w, resp
}

func missingFields(t *testing.T, resp httpx.Response) []string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("response data is %T, want object", resp.Data)
	}
	raw, ok := data["missingFields"].([]interface{})
	if !ok {
		t.Fatalf("missingFields absent from data: %v", data)
	}
	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		fields = append(fields, f.(string))
	}
	return fields
}

func TestDeployKeyFailsFastOnMissingFields(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w, resp := postJSON(t, h.DeployKey, `{"host":"1.2.3.4"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp.Code != httpx.CodeParamMissing {
		t.Errorf("code = %d, want %d", resp.Code, httpx.CodeParamMissing)
	}

	fields := missingFields(t, resp)
	want := map[string]bool{"username": true, "applicationName": true, "selectedRepo": true}
	if len(fields) != len(want) {
		t.Fatalf("missingFields = %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}

func TestDatabaseCreateFailsFastOnMissingFields(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w, resp := postJSON(t, h.DatabaseCreate,
		`{"host":"1.2.3.4","username":"deploy","applicationName":"shop","dbType":"mysql"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	fields := missingFields(t, resp)
	want := map[string]bool{"dbName": true, "dbUsername": true, "dbPassword": true}
	if len(fields) != len(want) {
		t.Fatalf("missingFields = %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}

func TestEnvUpdateDoesNotRequirePassword(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w, resp := postJSON(t, h.EnvUpdate,
		`{"host":"1.2.3.4","username":"deploy","applicationName":"shop","pathname":"/var/www/shop","dbType":"mysql","dbUsername":"shop_user"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	fields := missingFields(t, resp)
	if len(fields) != 1 || fields[0] != "dbName" {
		t.Fatalf("missingFields = %v, want [dbName] only", fields)
	}
}

func TestStepRejectsMalformedBody(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w, resp := postJSON(t, h.FolderSetup, `{"host": 42}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp.Code != httpx.CodeParamInvalid {
		t.Errorf("code = %d, want %d", resp.Code, httpx.CodeParamInvalid)
	}
}
