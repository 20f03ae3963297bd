package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"family-tasks/internal/service"
)

func patchRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, "/api/tasks/1", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDecodePatchAbsentFieldsStayUnset(t *testing.T) {
	patch, err := decodePatch(patchRequest(t, `{"title":"Новое имя"}`))
	if err != nil {
		t.Fatalf("decodePatch: %v", err)
	}
	if !patch.TitleSet || patch.Title != "Новое имя" {
		t.Errorf("title = %q (set=%t), want set title", patch.Title, patch.TitleSet)
	}
	if patch.DescriptionSet || patch.StatusSet || patch.DeadlineSet || patch.VisibilitySet || patch.RecurrenceSet {
		t.Error("absent fields must stay unset")
	}
}

func TestDecodePatchNullAppliesEmpty(t *testing.T) {
	patch, err := decodePatch(patchRequest(t, `{"description":null}`))
	if err != nil {
		t.Fatalf("decodePatch: %v", err)
	}
	if !patch.DescriptionSet {
		t.Error("description sent as null must be marked set")
	}
	if patch.Description != "" {
		t.Errorf("description = %q, want empty", patch.Description)
	}
}

func TestDecodePatchDeadline(t *testing.T) {
	patch, err := decodePatch(patchRequest(t, `{"deadline":"2026-03-10T18:00:00Z"}`))
	if err != nil {
		t.Fatalf("decodePatch: %v", err)
	}
	if !patch.DeadlineSet || patch.Deadline == nil {
		t.Fatal("deadline must be set")
	}
	want := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	if !patch.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", patch.Deadline, want)
	}
}

func TestDecodePatchDeadlineNullClears(t *testing.T) {
	patch, err := decodePatch(patchRequest(t, `{"deadline":null}`))
	if err != nil {
		t.Fatalf("decodePatch: %v", err)
	}
	if !patch.DeadlineSet {
		t.Error("deadline sent as null must be marked set")
	}
	if patch.Deadline != nil {
		t.Errorf("deadline = %v, want nil", patch.Deadline)
	}
}

func TestDecodePatchBadDeadline(t *testing.T) {
	if _, err := decodePatch(patchRequest(t, `{"deadline":"tomorrow"}`)); err == nil {
		t.Error("expected error for a non-timestamp deadline")
	}
}

func TestDecodePatchMalformedBody(t *testing.T) {
	if _, err := decodePatch(patchRequest(t, `{"title":`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: title is required", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: member has no family", service.ErrAccessDenied), http.StatusForbidden},
		{fmt.Errorf("%w: task 7", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("writeServiceError(%v) status = %d, want %d", tc.err, rec.Code, tc.want)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("response body is not JSON: %v", err)
		} else if body["error"] == "" {
			t.Errorf("response body %v lacks error field", body)
		}
	}
}

func TestParseID(t *testing.T) {
	if _, err := parseID("0"); err == nil {
		t.Error("id 0 should be rejected")
	}
	if _, err := parseID("abc"); err == nil {
		t.Error("non-numeric id should be rejected")
	}
	id, err := parseID("17")
	if err != nil {
		t.Fatalf("parseID(17): %v", err)
	}
	if id != 17 {
		t.Errorf("id = %d, want 17", id)
	}
}
