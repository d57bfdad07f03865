package export

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/mreicher/runflow/internal/tracker"
)

func TestSplitsDownload(t *testing.T) {
	app := fiber.New()
	app.Get("/splits.csv", SplitsDownload(func(*fiber.Ctx) ([]tracker.Split, error) {
		return []tracker.Split{{Mile: 1, Time: 300, Pace: 300}, {Mile: 2, Time: 330, Pace: 330}}, nil
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/splits.csv", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("download status: %v", err)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), SplitsFilename) {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Mile,Time,Pace\n1,05:00,05:00\n2,05:30,05:30\n" {
		t.Fatalf("unexpected csv %q", body)
	}
}

func TestSplitsDownloadLoadError(t *testing.T) {
	app := fiber.New()
	app.Get("/splits.csv", SplitsDownload(func(*fiber.Ctx) ([]tracker.Split, error) {
		return nil, fiber.NewError(fiber.StatusNotFound, "no run")
	}))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/splits.csv", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}
