package core

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	calendarType    = "text/calendar; charset=utf-8"
)

type Handlers interface {
	ListEvents(gctx *gin.Context)
	GetEvent(gctx *gin.Context)
	PostEvents(gctx *gin.Context)
	PutEvent(gctx *gin.Context)
	DeleteEvent(gctx *gin.Context)
	GetEventCalendar(gctx *gin.Context)
	GetCalendarFeed(gctx *gin.Context)
	GetAvailability(gctx *gin.Context)
	ListAttendees(gctx *gin.Context)
	PostAttendee(gctx *gin.Context)
	GetAttendee(gctx *gin.Context)
	DeleteAttendee(gctx *gin.Context)
	PatchAttendeeStatus(gctx *gin.Context)
}

type handlers struct {
	events    EventService
	attendees AttendeeService
	now       func() time.Time
}

func NewHandlers(events EventService, attendees AttendeeService) Handlers {
	return &handlers{events: events, attendees: attendees, now: time.Now}
}

func RegisterRoutes(router gin.IRouter, h Handlers) {
	api := router.Group("/api")

	api.GET("/events", h.ListEvents)
	api.POST("/events", h.PostEvents)
	api.GET("/events/:id", h.GetEvent)
	api.PUT("/events/:id", h.PutEvent)
	api.DELETE("/events/:id", h.DeleteEvent)
	api.GET("/events/:id/ical", h.GetEventCalendar)
	api.GET("/events/:id/attendees", h.ListAttendees)
	api.POST("/events/:id/attendees", h.PostAttendee)

	api.GET("/attendees/:id", h.GetAttendee)
	api.DELETE("/attendees/:id", h.DeleteAttendee)
	api.PATCH("/attendees/:id/status", h.PatchAttendeeStatus)

	api.GET("/availability", h.GetAvailability)
	api.GET("/calendar.ics", h.GetCalendarFeed)
}

type EventQuery struct {
	SearchTerm    string    `form:"searchTerm"`
	StartDate     time.Time `form:"startDate" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate       time.Time `form:"endDate" time_format:"2006-01-02T15:04:05Z07:00"`
	AttendeeEmail string    `form:"attendeeEmail"`
	PageNumber    int       `form:"pageNumber" binding:"omitempty,min=1"`
	PageSize      int       `form:"pageSize" binding:"omitempty,min=1"`
}

type AvailabilityQuery struct {
	Start     time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	End       time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	ExcludeId string    `form:"excludeId"`
}

type StatusRequest struct {
	Status *AttendanceStatus `json:"status" binding:"required"`
}

type PageResult[T any] struct {
	Items           []T  `json:"items"`
	TotalCount      int  `json:"total_count"`
	PageNumber      int  `json:"page_number"`
	PageSize        int  `json:"page_size"`
	TotalPages      int  `json:"total_pages"`
	HasPreviousPage bool `json:"has_previous_page"`
	HasNextPage     bool `json:"has_next_page"`
}

func NewPageResult[T any](all []T, pageNumber int, pageSize int) PageResult[T] {
	if pageNumber < 1 {
		pageNumber = 1
	}

	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	pageSize = min(pageSize, maxPageSize)

	total := len(all)
	from := min((pageNumber-1)*pageSize, total)
	to := min(from+pageSize, total)

	items := make([]T, to-from)
	copy(items, all[from:to])

	totalPages := (total + pageSize - 1) / pageSize

	return PageResult[T]{
		Items:           items,
		TotalCount:      total,
		PageNumber:      pageNumber,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasPreviousPage: pageNumber > 1,
		HasNextPage:     pageNumber < totalPages,
	}
}

func (h *handlers) ListEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var query EventQuery

	err := gctx.ShouldBindQuery(&query)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("invalid query parameters")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid query parameters", err))

		return
	}

	var events []Event

	switch {
	case query.SearchTerm != "":
		events, err = h.events.Search(ctx, query.SearchTerm)
	case query.AttendeeEmail != "":
		events, err = h.attendees.GetEventsByEmail(ctx, query.AttendeeEmail)
	case !query.StartDate.IsZero() && !query.EndDate.IsZero():
		events, err = h.events.GetByDateRange(ctx, query.StartDate, query.EndDate)
	default:
		events, err = h.events.GetAll(ctx)
	}

	if err != nil {
		h.fail(gctx, "list_events", "", err)
		return
	}

	gctx.JSON(http.StatusOK, NewPageResult(events, query.PageNumber, query.PageSize))
}

func (h *handlers) GetEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	event, err := h.events.GetWithAttendees(ctx, id)
	if err != nil {
		h.fail(gctx, "get_event", id, err)
		return
	}

	gctx.JSON(http.StatusOK, event)
}

func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var event Event

	// Accepts title, description, start_time, end_time and optional inline attendees.
	err := gctx.ShouldBindJSON(&event)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	savedEvent, err := h.events.Create(ctx, &event)
	if err != nil {
		h.fail(gctx, "create_event", "", err)
		return
	}

	gctx.Header("Location", "/api/events/"+savedEvent.Id)
	gctx.JSON(http.StatusCreated, savedEvent)
}

func (h *handlers) PutEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	var changes Event

	err := gctx.ShouldBindJSON(&changes)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	updated, err := h.events.Update(ctx, id, &changes)
	if err != nil {
		h.fail(gctx, "update_event", id, err)
		return
	}

	gctx.JSON(http.StatusOK, updated)
}

func (h *handlers) DeleteEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	deleted, err := h.events.Delete(ctx, id)
	if err != nil {
		h.fail(gctx, "delete_event", id, err)
		return
	}

	if !deleted {
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found"))
		return
	}

	gctx.Status(http.StatusNoContent)
}

func (h *handlers) GetEventCalendar(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	event, err := h.events.GetWithAttendees(ctx, id)
	if err != nil {
		h.fail(gctx, "get_event_calendar", id, err)
		return
	}

	h.writeCalendar(gctx, "get_event_calendar", []Event{*event})
}

func (h *handlers) GetCalendarFeed(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var (
		events []Event
		err    error
	)

	if email := gctx.Query("attendeeEmail"); email != "" {
		events, err = h.attendees.GetEventsByEmail(ctx, email)
	} else {
		events, err = h.events.GetAll(ctx)
	}

	if err != nil {
		h.fail(gctx, "get_calendar_feed", "", err)
		return
	}

	h.writeCalendar(gctx, "get_calendar_feed", events)
}

func (h *handlers) GetAvailability(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var query AvailabilityQuery

	err := gctx.ShouldBindQuery(&query)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("invalid query parameters")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid query parameters", err))

		return
	}

	available, err := h.events.IsSlotAvailable(ctx, query.Start, query.End, query.ExcludeId)
	if err != nil {
		h.fail(gctx, "check_availability", query.ExcludeId, err)
		return
	}

	gctx.JSON(http.StatusOK, gin.H{"available": available})
}

func (h *handlers) ListAttendees(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	_, err := h.events.GetById(ctx, id)
	if err != nil {
		h.fail(gctx, "list_attendees", id, err)
		return
	}

	attendees, err := h.attendees.GetByEvent(ctx, id)
	if err != nil {
		h.fail(gctx, "list_attendees", id, err)
		return
	}

	gctx.JSON(http.StatusOK, attendees)
}

func (h *handlers) PostAttendee(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	var attendee Attendee

	err := gctx.ShouldBindJSON(&attendee)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	saved, err := h.attendees.AddToEvent(ctx, id, &attendee)
	if err != nil {
		h.fail(gctx, "add_attendee", id, err)
		return
	}

	gctx.Header("Location", "/api/attendees/"+saved.Id)
	gctx.JSON(http.StatusCreated, saved)
}

func (h *handlers) GetAttendee(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	attendee, err := h.attendees.GetById(ctx, id)
	if err != nil {
		h.fail(gctx, "get_attendee", id, err)
		return
	}

	gctx.JSON(http.StatusOK, attendee)
}

func (h *handlers) DeleteAttendee(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	removed, err := h.attendees.Remove(ctx, id)
	if err != nil {
		h.fail(gctx, "remove_attendee", id, err)
		return
	}

	if !removed {
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("attendee not found"))
		return
	}

	gctx.Status(http.StatusNoContent)
}

func (h *handlers) PatchAttendeeStatus(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id, ok := h.idParam(gctx)
	if !ok {
		return
	}

	var req StatusRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	updated, err := h.attendees.UpdateStatus(ctx, id, *req.Status)
	if err != nil {
		h.fail(gctx, "update_attendee_status", id, err)
		return
	}

	if !updated {
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("attendee not found"))
		return
	}

	gctx.Status(http.StatusNoContent)
}

// idParam checks that the 'id' path parameter is a UUID, answering 400 otherwise.
func (h *handlers) idParam(gctx *gin.Context) (string, bool) {
	id := gctx.Param("id")

	_, err := uuid.Parse(id)
	if err != nil {
		log.Ctx(gctx.Request.Context()).Info().Str("id", id).Msg("parameter 'id' is not a valid identifier")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' must be a valid identifier", err))

		return "", false
	}

	return id, true
}

func (h *handlers) writeCalendar(gctx *gin.Context, operation string, events []Event) {
	var buf bytes.Buffer

	err := WriteCalendar(&buf, events, h.now())
	if err != nil {
		h.fail(gctx, operation, "", err)
		return
	}

	gctx.Data(http.StatusOK, calendarType, buf.Bytes())
}

// fail maps domain errors to status codes. Anything unexpected is logged and
// answered with a generic message.
func (h *handlers) fail(gctx *gin.Context, operation string, id string, err error) {
	ctx := gctx.Request.Context()

	switch {
	case errors.Is(err, ErrNotFound):
		log.Ctx(ctx).Info().Err(err).Str("operation", operation).Str("id", id).Msg("not found")
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("not found", err))
	case errors.Is(err, ErrValidation):
		log.Ctx(ctx).Info().Err(err).Str("operation", operation).Str("id", id).Msg("validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("validation failed", err))
	case errors.Is(err, ErrConflict):
		log.Ctx(ctx).Info().Err(err).Str("operation", operation).Str("id", id).Msg("time slot conflict")
		gctx.AbortWithStatusJSON(http.StatusConflict, NewError("the selected time slot is not available"))
	default:
		log.Ctx(ctx).Error().Err(err).Str("operation", operation).Str("id", id).Msg("unexpected failure")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("an error occurred while processing your request"))
	}
}
