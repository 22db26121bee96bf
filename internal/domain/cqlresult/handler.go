package cqlresult

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

const maxBodySize = 16 << 20

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/interpret", h.Interpret)
}

// Interpret handles POST /interpret. The body is a $cql response Bundle.
func (h *Handler) Interpret(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("failed to read request body"))
	}
	rs, err := ParseResultSet(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, err.Error()))
	}
	result, err := Classify(Interpret(rs))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, result)
}
