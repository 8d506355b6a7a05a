package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
)

func TestWriteServiceError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteServiceError(rr, svcerrors.NotFound("Value not found"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Value not found" {
		t.Errorf("message = %q, want %q", body.Message, "Value not found")
	}
}

func TestWriteServiceError_HidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteServiceError(rr, errors.New("pq: connection refused on 10.0.0.1"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Error("internal error details leaked to client")
	}
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Value json.RawMessage `json:"value"`
	}

	req := httptest.NewRequest(http.MethodPut, "/values/a", strings.NewReader(`{"value":{"n":1}}`))
	rr := httptest.NewRecorder()
	if !DecodeJSON(rr, req, &payload) {
		t.Fatalf("DecodeJSON() = false, body %s", rr.Body.String())
	}
	if string(payload.Value) != `{"n":1}` {
		t.Errorf("value = %s", payload.Value)
	}

	req = httptest.NewRequest(http.MethodPut, "/values/a", strings.NewReader(`{bad`))
	rr = httptest.NewRecorder()
	if DecodeJSON(rr, req, &payload) {
		t.Fatal("DecodeJSON() should fail for invalid JSON")
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestDecodeJSONLimit(t *testing.T) {
	var payload struct {
		Value json.RawMessage `json:"value"`
	}
	body := `{"value":"` + strings.Repeat("a", 64) + `"}`

	rr := httptest.NewRecorder()
	if DecodeJSONLimit(rr, httptest.NewRequest(http.MethodPut, "/values/a", strings.NewReader(body)), &payload, 16) {
		t.Fatal("DecodeJSONLimit() should fail for an oversized body")
	}
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}

	rr = httptest.NewRecorder()
	if !DecodeJSONLimit(rr, httptest.NewRequest(http.MethodPut, "/values/a", strings.NewReader(body)), &payload, int64(len(body))) {
		t.Fatalf("DecodeJSONLimit() = false, body %s", rr.Body.String())
	}
}
