package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantLevel zapcore.Level
	}{
		{
			name:      "fiber error keeps code and message",
			err:       fiber.NewError(fiber.StatusNotFound, "not found"),
			wantCode:  fiber.StatusNotFound,
			wantError: "not found",
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "plain error is masked",
			err:       errors.New("pq: connection refused"),
			wantCode:  fiber.StatusInternalServerError,
			wantError: internalErrorMessage,
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
			app.Get("/boom", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}

			var parsed map[string]string
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("json unmarshal error = %v", err)
			}
			if parsed["error"] != tt.wantError {
				t.Fatalf("error = %q, want %q", parsed["error"], tt.wantError)
			}

			entries := logs.All()
			if len(entries) != 1 || entries[0].Level != tt.wantLevel {
				t.Fatalf("log entries = %+v, want one at %s", entries, tt.wantLevel)
			}
		})
	}
}
