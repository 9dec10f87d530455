package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Equipment identity fields reach storage only through parameterized queries,
// and real manufacturer and model strings contain SQL keywords as substrings
// ("Altera", "EXEC-500"). Only markup injection is screened here.
var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxFieldLength      int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxFieldLength == 0 {
		cfg.MaxFieldLength = 500
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" && !typeAllowed(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "unsupported content type",
				})
			}
		}

		path := c.Path()

		if strings.HasSuffix(path, "/resolve") && c.Method() == fiber.MethodPost {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON format",
				})
			}

			for _, field := range []string{"manufacturer", "model_number", "product_family"} {
				value, ok := req[field].(string)
				if !ok {
					continue
				}

				if len(value) > cfg.MaxFieldLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": field + " exceeds maximum length",
					})
				}

				if xssPattern.MatchString(value) {
					cfg.Logger.Warn("Suspicious input rejected",
						zap.String("ip", c.IP()),
						zap.String("field", field),
					)
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "invalid " + field + " content",
					})
				}
			}

			if manualURL, ok := req["manual_url"].(string); ok && manualURL != "" {
				if !isValidURL(manualURL) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "invalid manual_url format",
					})
				}
			}
		}

		return c.Next()
	}
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, allowedType := range allowed {
		if strings.Contains(contentType, allowedType) {
			return true
		}
	}
	return false
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
