package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"hostel_availability/internal/app"
	"hostel_availability/internal/domain"
)

type Handlers struct {
	Q        *app.QueryService
	Avail    *app.AvailabilityService
	Resolver *app.Resolver
	Bookings *app.BookingService
	Access   *app.Access
}

type problem struct {
	Type              string            `json:"type"`
	Title             string            `json:"title"`
	Status            int               `json:"status"`
	Detail            string            `json:"detail,omitempty"`
	ConflictingRanges []domain.Interval `json:"conflicting_ranges,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MountHandlers registers every route. Everything but /healthz needs a bearer
// token signed with jwtSecret.
func (s *Server) MountHandlers(h *Handlers, jwtSecret []byte) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.mux.Group(func(r chi.Router) {
		r.Use(Auth(jwtSecret))

		r.Route("/host/availability", func(r chi.Router) {
			r.Use(RequireManager)
			r.Get("/", h.hostAvailability)
			r.Get("/{hostel_id}", h.hostelAvailability)
			r.Get("/{hostel_id}/calendar", h.calendar)
			r.Get("/room/{room_id}", h.roomAvailability)
			r.Post("/room/{room_id}", h.setDay)
			r.Post("/room/{room_id}/bulk", h.bulkUpdate)
			r.Post("/room/{room_id}/block", h.block)
			r.Post("/room/{room_id}/unblock", h.unblock)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.createBooking)
			r.Post("/check-availability", h.checkAvailability)
			r.Get("/{id}", h.getBooking)
			r.Post("/{id}/cancel", h.cancelBooking)
			r.Post("/{id}/confirm", h.confirmBooking)
			r.Post("/{id}/complete", h.completeBooking)
		})
	})
}

// ---- request bodies ----

type setDayRequest struct {
	Date        string `json:"date" validate:"required"`
	IsAvailable *bool  `json:"is_available" validate:"required"`
}

type bulkRequest struct {
	Dates       []string `json:"dates" validate:"required,min=1,max=731,dive,required"`
	IsAvailable *bool    `json:"is_available" validate:"required"`
}

type rangeRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason" validate:"max=255"`
}

type bookingRequest struct {
	HostelID  int64  `json:"hostel_id" validate:"required_without=RoomID,gte=0"`
	RoomID    *int64 `json:"room_id" validate:"omitempty,gt=0"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// ---- response helpers ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		writeProblem(w, http.StatusBadRequest, "Invalid Range", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Conflict", Status: http.StatusConflict,
			Detail: err.Error(), ConflictingRanges: domain.ConflictRanges(err),
		})
	case errors.Is(err, domain.ErrNoRoomAvailable):
		writeProblem(w, http.StatusConflict, "No Room Available", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Invalid Transition", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers with an ETag and short-circuits to 304 when the client
// already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// decode reads a JSON body and validates it; it writes the 400 itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", name+" must be a positive number")
		return 0, false
	}
	return id, true
}

// window reads start_date/end_date; both absent means today plus 30 days.
func window(w http.ResponseWriter, r *http.Request) (domain.Range, bool) {
	q := r.URL.Query()
	from, to := q.Get("start_date"), q.Get("end_date")
	if from == "" && to == "" {
		return app.DefaultWindow(domain.Today()), true
	}
	if from == "" || to == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "start_date and end_date go together")
		return domain.Range{}, false
	}
	rg, err := domain.ParseRange(from, to)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", err.Error())
		return domain.Range{}, false
	}
	return rg, true
}

func principal(r *http.Request) domain.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// ---- host availability ----

func (h *Handlers) hostAvailability(w http.ResponseWriter, r *http.Request) {
	rg, ok := window(w, r)
	if !ok {
		return
	}
	p := principal(r)
	hostID := p.Subject
	if other := r.URL.Query().Get("host_id"); other != "" && p.IsAdmin() {
		hostID = other
	}
	out, err := h.Q.GetHostAvailability(r.Context(), hostID, rg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"host_id": hostID, "window": rg, "rooms": out})
}

func (h *Handlers) hostelAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "hostel_id")
	if !ok {
		return
	}
	rg, ok := window(w, r)
	if !ok {
		return
	}
	if err := h.Access.Hostel(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Q.GetHostelAvailability(r.Context(), id, rg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"hostel_id": id, "window": rg, "rooms": out})
}

func (h *Handlers) roomAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "room_id")
	if !ok {
		return
	}
	rg, ok := window(w, r)
	if !ok {
		return
	}
	if err := h.Access.Room(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Q.GetRoomAvailability(r.Context(), id, rg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) calendar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "hostel_id")
	if !ok {
		return
	}
	ym, err := domain.ParseYearMonth(r.URL.Query().Get("year_month"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Month", "year_month must be YYYY-MM")
		return
	}
	if err := h.Access.Hostel(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Q.GetCalendar(r.Context(), id, ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

// ---- host mutations ----

func (h *Handlers) setDay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "room_id")
	if !ok {
		return
	}
	var req setDayRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := domain.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Access.Room(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Avail.SetDay(r.Context(), id, d, *req.IsAvailable); err != nil {
		writeError(w, r, err)
		return
	}
	h.roomWindow(w, r, id, domain.Range{Start: d, End: d.AddDays(1)})
}

func (h *Handlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "room_id")
	if !ok {
		return
	}
	var req bulkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Access.Room(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Avail.BulkUpdate(r.Context(), id, req.Dates, *req.IsAvailable)
	if err != nil {
		writeError(w, r, err)
		return
	}
	failed := 0
	for _, it := range res {
		if !it.OK {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":   id,
		"succeeded": len(res) - failed,
		"failed":    failed,
		"results":   res,
	})
}

func (h *Handlers) block(w http.ResponseWriter, r *http.Request) {
	h.rangeMutation(w, r, true)
}

func (h *Handlers) unblock(w http.ResponseWriter, r *http.Request) {
	h.rangeMutation(w, r, false)
}

func (h *Handlers) rangeMutation(w http.ResponseWriter, r *http.Request, block bool) {
	id, ok := pathID(w, r, "room_id")
	if !ok {
		return
	}
	var req rangeRequest
	if !decode(w, r, &req) {
		return
	}
	rg, err := domain.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Access.Room(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	if block {
		err = h.Avail.Block(r.Context(), id, rg, req.Reason)
	} else {
		err = h.Avail.Unblock(r.Context(), id, rg)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.roomWindow(w, r, id, rg)
}

// roomWindow answers a mutation with the room's state over the touched days.
func (h *Handlers) roomWindow(w http.ResponseWriter, r *http.Request, roomID int64, rg domain.Range) {
	out, err := h.Q.GetRoomAvailability(r.Context(), roomID, rg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- bookings ----

func (h *Handlers) parseBooking(w http.ResponseWriter, r *http.Request) (bookingRequest, domain.Range, bool) {
	var req bookingRequest
	if !decode(w, r, &req) {
		return req, domain.Range{}, false
	}
	rg, err := domain.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return req, domain.Range{}, false
	}
	return req, rg, true
}

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	req, rg, ok := h.parseBooking(w, r)
	if !ok {
		return
	}
	var (
		out domain.AvailabilityCheck
		err error
	)
	if req.RoomID != nil {
		out, err = h.Resolver.CheckRoomInHostel(r.Context(), req.HostelID, *req.RoomID, rg)
	} else {
		out, err = h.Resolver.CheckHostel(r.Context(), req.HostelID, rg)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	req, rg, ok := h.parseBooking(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.Create(r.Context(), domain.BookingRequest{
		HostelID: req.HostelID,
		RoomID:   req.RoomID,
		GuestID:  principal(r).Subject,
		Stay:     rg,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

// loadBooking fetches the booking and checks the caller may see it.
func (h *Handlers) loadBooking(w http.ResponseWriter, r *http.Request) (domain.Booking, bool) {
	b, err := h.Bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		err = h.Access.Booking(r.Context(), principal(r), b)
	}
	if err != nil {
		writeError(w, r, err)
		return domain.Booking{}, false
	}
	return b, true
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	writeCached(w, r, b)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	out, err := h.Bookings.Cancel(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) confirmBooking(w http.ResponseWriter, r *http.Request) {
	h.hostTransition(w, r, h.Bookings.Confirm)
}

func (h *Handlers) completeBooking(w http.ResponseWriter, r *http.Request) {
	h.hostTransition(w, r, h.Bookings.Complete)
}

// hostTransition runs a status change only the hostel's host or an admin may make.
func (h *Handlers) hostTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id string) (domain.Booking, error)) {
	b, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	if err := h.Access.Hostel(r.Context(), principal(r), b.HostelID); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := fn(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
