package history

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newHistoryApp(svc *Service, user string) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/runs"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", user)
		return c.Next()
	})
	return app
}

func TestHistoryHandlersPendingSaveAndExport(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	app := newHistoryApp(svc, "u1")

	req := httptest.NewRequest(http.MethodGet, "/runs/pending", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found without pending run")
	}

	svc.Complete("u1", sampleRun("run_a", time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)))

	req = httptest.NewRequest(http.MethodGet, "/runs/pending", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("pending status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/pending/splits.csv", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("pending csv status: %v", err)
	}
	pendingCSV, _ := io.ReadAll(resp.Body)
	if string(pendingCSV) != "Mile,Time,Pace\n1,09:20,09:20\n" {
		t.Fatalf("unexpected pending csv %q", pendingCSV)
	}

	req = httptest.NewRequest(http.MethodPost, "/runs/pending/save", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("save status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/pending/splits.csv", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected no pending csv after save, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
	var runs []SavedRun
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil || len(runs) != 1 {
		t.Fatalf("decode list: %v (%d runs)", err, len(runs))
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/run_a", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/run_a/splits.csv", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("csv status: %v", err)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "runflow_splits.csv") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Mile,Time,Pace\n1,09:20,09:20\n" {
		t.Fatalf("unexpected csv %q", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/run_a/elevation", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("elevation status: %v", err)
	}
}

func TestHistoryHandlersDiscard(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	app := newHistoryApp(svc, "u1")
	svc.Complete("u1", sampleRun("run_a", time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/runs/pending/discard", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected no content, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/runs/pending/discard", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found on second discard")
	}
}

func TestHistoryHandlersNotFoundAndFlatProfile(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	app := newHistoryApp(svc, "u1")

	req := httptest.NewRequest(http.MethodGet, "/runs/missing", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}

	run := sampleRun("run_flat", time.Now())
	run.Altitudes = []*float64{alt(100), nil}
	svc.Complete("u1", run)
	if _, err := svc.SavePending(context.Background(), "u1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/run_flat/elevation", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable profile, got %d", resp.StatusCode)
	}
}
