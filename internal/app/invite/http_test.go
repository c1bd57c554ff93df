package invite

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gtdflow/gtdflow/internal/app/identity"
	"github.com/gtdflow/gtdflow/internal/app/tasks"
)

var errSMTPDown = errors.New("smtp down")

func newInviteTestServer(t *testing.T, store *fakeTaskStore, mailer *fakeMailer) (http.Handler, string) {
	t.Helper()

	identitySvc := identity.NewService(nil, identity.NewTokenManager("test-secret"))
	token, err := identitySvc.AuthToken.Sign("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	svc, _ := newInviteServiceForTests(store, mailer)
	router := tasks.NewHandler(tasks.NewService(nil, nil), identitySvc, "*")
	router.Mount(NewHandler(svc).Routes)
	return router.Router(), token
}

func postInvite(t *testing.T, handler http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invites", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInviteEndpoint(t *testing.T) {
	store := newFakeTaskStore(scheduledTask())
	mailer := &fakeMailer{}
	handler, token := newInviteTestServer(t, store, mailer)

	body := `{"actionId":"abc123","userId":"u1","userEmails":["a@example.com","b@example.com"]}`
	rec := postInvite(t, handler, token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.RecipientCount != 2 || resp.EmailID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if store.marked["abc123"] != "a@example.com, b@example.com" {
		t.Errorf("recipients not recorded: %q", store.marked["abc123"])
	}
}

func TestInviteEndpoint_LegacySingleRecipient(t *testing.T) {
	store := newFakeTaskStore(scheduledTask())
	handler, token := newInviteTestServer(t, store, &fakeMailer{})

	rec := postInvite(t, handler, token, `{"actionId":"abc123","userId":"u1","userEmail":"a@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.marked["abc123"] != "a@example.com" {
		t.Errorf("recipient not recorded: %q", store.marked["abc123"])
	}
}

func TestInviteEndpoint_Unauthenticated(t *testing.T) {
	handler, _ := newInviteTestServer(t, newFakeTaskStore(), &fakeMailer{})

	rec := postInvite(t, handler, "", `{"actionId":"abc123","userId":"u1","userEmail":"a@example.com"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInviteEndpoint_Validation(t *testing.T) {
	unscheduled := scheduledTask()
	unscheduled.ScheduledAt = nil
	unscheduled.ID = "nosched"
	store := newFakeTaskStore(scheduledTask(), unscheduled)
	handler, token := newInviteTestServer(t, store, &fakeMailer{})

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing actionId", `{"userId":"u1","userEmail":"a@example.com"}`, http.StatusBadRequest},
		{"missing recipients", `{"actionId":"abc123","userId":"u1"}`, http.StatusBadRequest},
		{"invalid recipient", `{"actionId":"abc123","userId":"u1","userEmail":"nope"}`, http.StatusBadRequest},
		{"foreign userId", `{"actionId":"abc123","userId":"u2","userEmail":"a@example.com"}`, http.StatusForbidden},
		{"unknown task", `{"actionId":"missing","userId":"u1","userEmail":"a@example.com"}`, http.StatusNotFound},
		{"unscheduled task", `{"actionId":"nosched","userId":"u1","userEmail":"a@example.com"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postInvite(t, handler, token, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestInviteEndpoint_DispatchFailure(t *testing.T) {
	store := newFakeTaskStore(scheduledTask())
	handler, token := newInviteTestServer(t, store, &fakeMailer{err: errSMTPDown})

	rec := postInvite(t, handler, token, `{"actionId":"abc123","userId":"u1","userEmail":"a@example.com"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Failed to send calendar invite" {
		t.Errorf("provider detail leaked: %q", resp["error"])
	}
	if store.tasks["abc123"].CalendarInviteSent {
		t.Error("task must not be marked sent on dispatch failure")
	}
}
