package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// Roles understood by the API.
const (
	RoleReader     = "reader"
	RoleCalculator = "calculator"
)

// RequireRole allows the request when the token carries one of roles or
// "admin". Without authentication configured there are no roles in the
// context, so mount it only behind JWTMiddleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, has := range userRoles {
				if has == "admin" {
					return next(c)
				}
				for _, required := range roles {
					if has == required {
						return next(c)
					}
				}
			}
			return c.JSON(http.StatusForbidden, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeSecurity,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or "))))
		}
	}
}
