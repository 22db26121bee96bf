package measurereport

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// MaxReportSize bounds the request body accepted by the classify endpoint.
const MaxReportSize = 16 << 20

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/classify", h.Classify)
}

// Classify handles POST /classify. The body is an individual MeasureReport;
// the response is its ClassifiedReport.
func (h *Handler) Classify(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxReportSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("failed to read request body"))
	}
	report, err := ParseReport(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, err.Error()))
	}
	result, err := ClassifyReport(report)
	if err != nil {
		var se *StructuralError
		if errors.As(err, &se) {
			return c.JSON(http.StatusUnprocessableEntity, fhir.StructureOutcome(se.Path, se.Error()))
		}
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, result)
}
