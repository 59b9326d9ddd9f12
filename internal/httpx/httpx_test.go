package httpx

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: empty body", models.ErrValidation), fiber.StatusBadRequest},
		{fmt.Errorf("%w: not a member", models.ErrPermissionDenied), fiber.StatusForbidden},
		{store.ErrNotFound, fiber.StatusNotFound},
		{chatsync.ErrClosed, fiber.StatusConflict},
		{roster.ErrClosed, fiber.StatusConflict},
		{chatsync.ErrSendFailed, fiber.StatusBadGateway},
		{fmt.Errorf("disk on fire"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			return DomainError(c, "test", tc.err)
		})
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("app.Test(%v): %v", tc.err, err)
		}
		if resp.StatusCode != tc.status {
			t.Errorf("DomainError(%v) status = %d, want %d", tc.err, resp.StatusCode, tc.status)
		}
	}
}
