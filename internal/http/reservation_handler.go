package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/logging"
)

type reservationService interface {
	Calendar() application.Calendar
	Create(ctx context.Context, req application.ReservationRequest) (application.Reservation, error)
	Approve(ctx context.Context, token string) (application.Reservation, error)
	Verify(ctx context.Context, token string) (application.ReservationView, error)
	ListUpcoming(ctx context.Context) ([]application.Reservation, error)
}

// ReservationHandler serves the reservation lifecycle.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := logging.OrDefault(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create handles POST /reservations. The token is not echoed back; it
// reaches the requester only through the confirmation notification.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "room_id", req.RoomID)

	input, err := req.toRequest(h.service.Calendar())
	if err != nil {
		logger.WarnContext(r.Context(), "invalid reservation slot", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	reservation, err := h.service.Create(r.Context(), input)
	if err != nil {
		logger.WarnContext(r.Context(), "reservation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// List handles GET /reservations. It runs behind RequireAuthToken.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	reservations, err := h.service.ListUpcoming(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	h.log(r.Context(), "List").With("result_count", len(out)).DebugContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: out})
}

// Verify handles GET /reservations/{token}.
func (h *ReservationHandler) Verify(w http.ResponseWriter, r *http.Request, token string) {
	if !h.ready(w) {
		return
	}

	view, err := h.service.Verify(r.Context(), token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationViewResponse{
		Reservation: toReservationDTO(view.Reservation),
		Room:        toRoomDTO(view.Room),
	})
}

// Approve handles POST /reservations/{token}/approve.
func (h *ReservationHandler) Approve(w http.ResponseWriter, r *http.Request, token string) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Approve")
	reservation, err := h.service.Approve(r.Context(), token)
	if err != nil {
		logger.WarnContext(r.Context(), "approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

type reservationRequest struct {
	Email     string `json:"email"`
	RoomID    int64  `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (r reservationRequest) toRequest(cal application.Calendar) (application.ReservationRequest, error) {
	day, slot, err := cal.ParseSlot(r.Date, r.StartTime, r.EndTime)
	if err != nil {
		return application.ReservationRequest{}, err
	}
	return application.ReservationRequest{
		Email:  r.Email,
		RoomID: r.RoomID,
		Date:   day,
		Start:  slot.Start,
		End:    slot.End,
		Reason: r.Reason,
	}, nil
}

type reservationDTO struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	RoomID     int64   `json:"room_id"`
	Date       string  `json:"date"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Reason     string  `json:"reason,omitempty"`
	Approved   bool    `json:"approved"`
	CreatedAt  string  `json:"created_at"`
	ApprovedAt *string `json:"approved_at,omitempty"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:        reservation.ID,
		Email:     reservation.Email,
		RoomID:    reservation.RoomID,
		Date:      reservation.Date.Format(application.DateLayout),
		StartTime: reservation.Start.Format(application.ClockLayout),
		EndTime:   reservation.End.Format(application.ClockLayout),
		Reason:    reservation.Reason,
		Approved:  reservation.Approved,
		CreatedAt: reservation.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if reservation.ApprovedAt != nil {
		approvedAt := reservation.ApprovedAt.UTC().Format(time.RFC3339Nano)
		dto.ApprovedAt = &approvedAt
	}
	return dto
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationViewResponse struct {
	Reservation reservationDTO `json:"reservation"`
	Room        roomDTO        `json:"room"`
}
