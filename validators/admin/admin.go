package adminValidator

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"qbank/middleware"
)

// ExpireCache validates a manual cache invalidation request. Exactly one of
// key and namespace must be set.
func ExpireCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Key       string `json:"key"`
			Namespace string `json:"namespace"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		key := strings.TrimSpace(reqData.Key)
		namespace := strings.TrimSpace(reqData.Namespace)
		if key == "" && namespace == "" {
			errors["key"] = "Either key or namespace is required!"
		}
		if key != "" && namespace != "" {
			errors["key"] = "Provide either key or namespace, not both!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedExpireCache", reqData)
		return c.Next()
	}
}
