package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-routing-api/internal/dto"
	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
	"github.com/noah-isme/case-routing-api/pkg/response"
)

type workingDayService interface {
	IsWorkingDay(ctx context.Context, day time.Time) bool
	PreviousWorkingDay(ctx context.Context, day time.Time) time.Time
	HolidaysBetween(ctx context.Context, from, to time.Time) []models.BankHoliday
	Refresh(ctx context.Context) (*models.HolidaySnapshot, error)
}

// CalendarHandler exposes working-day lookups.
type CalendarHandler struct {
	calendar workingDayService
	location *time.Location
}

// NewCalendarHandler builds a new handler; dates in requests are read in loc.
func NewCalendarHandler(calendar workingDayService, loc *time.Location) *CalendarHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarHandler{calendar: calendar, location: loc}
}

// WorkingDay godoc
// @Summary Check whether a date is a working day
// @Tags Calendar
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/working-days/{date} [get]
func (h *CalendarHandler) WorkingDay(c *gin.Context) {
	day, err := h.parseDate(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	response.JSON(c, http.StatusOK, dto.WorkingDayResponse{
		Date:               day.Format(models.HolidayDateLayout),
		WorkingDay:         h.calendar.IsWorkingDay(ctx, day),
		PreviousWorkingDay: h.calendar.PreviousWorkingDay(ctx, day).Format(models.HolidayDateLayout),
	}, nil)
}

// Holidays godoc
// @Summary List bank holidays in a date range
// @Tags Calendar
// @Produce json
// @Param from query string true "From (YYYY-MM-DD)"
// @Param to query string true "To (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/holidays [get]
func (h *CalendarHandler) Holidays(c *gin.Context) {
	from, err := h.parseDate(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := h.parseDate(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if to.Before(from) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must not be before from"))
		return
	}
	holidays := h.calendar.HolidaysBetween(c.Request.Context(), from, to)
	response.JSON(c, http.StatusOK, holidays, map[string]interface{}{"count": len(holidays)})
}

// Refresh godoc
// @Summary Force a bank holiday refresh from the provider
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /calendar/holidays/refresh [post]
func (h *CalendarHandler) Refresh(c *gin.Context) {
	snapshot, err := h.calendar.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.HolidayRefreshResponse{
		Division:  snapshot.Division,
		Holidays:  len(snapshot.Holidays),
		Source:    snapshot.Source,
		FetchedAt: snapshot.FetchedAt,
	}, nil)
}

func (h *CalendarHandler) parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(models.HolidayDateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return day, nil
}
