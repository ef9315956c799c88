package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/scheduler"
)

type roomService interface {
	AddRoom(ctx context.Context, input application.RoomInput) (application.Room, error)
	GetRoom(ctx context.Context, id int64) (application.Room, error)
	ListRooms(ctx context.Context) ([]application.Room, error)
	UpdateRoom(ctx context.Context, id int64, patch application.RoomPatch) (application.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
}

type slotService interface {
	Calendar() application.Calendar
	BookedIntervals(ctx context.Context, roomID int64, date time.Time) ([]scheduler.Interval, error)
	CheckCollision(ctx context.Context, roomID int64, date time.Time, slot scheduler.Interval) (application.Collision, error)
}

// RoomHandler serves the room catalog and per-room availability.
type RoomHandler struct {
	service   roomService
	slots     slotService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, slots slotService, logger *slog.Logger) *RoomHandler {
	base := logging.OrDefault(logger)
	return &RoomHandler{service: service, slots: slots, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	room, err := h.service.AddRoom(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Get", rawID)
	if !ok {
		return
	}

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Update", rawID)
	if !ok {
		return
	}

	var req roomPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "room_id", roomID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "room_id", roomID)
	room, err := h.service.UpdateRoom(r.Context(), roomID, req.toPatch())
	if err != nil {
		logger.WarnContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Delete", rawID)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "room_id", roomID)
	if err := h.service.DeleteRoom(r.Context(), roomID); err != nil {
		logger.WarnContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "List").With("result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// Intervals handles GET /rooms/{id}/intervals?date=DD-MM-YYYY.
func (h *RoomHandler) Intervals(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.ready(w) || !h.slotsReady(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Intervals", rawID)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	day, err := h.slots.Calendar().ParseDate(date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, application.NewValidationError("date", err.Error()))
		return
	}

	booked, err := h.slots.BookedIntervals(r.Context(), roomID, day)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	intervals := make([]intervalDTO, 0, len(booked))
	for _, interval := range booked {
		intervals = append(intervals, toIntervalDTO(interval))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, intervalsResponse{
		RoomID:    roomID,
		Date:      day.Format(application.DateLayout),
		Intervals: intervals,
	})
}

// Collision handles GET /rooms/{id}/collision?date=&start=&end=.
func (h *RoomHandler) Collision(w http.ResponseWriter, r *http.Request, rawID string) {
	if !h.ready(w) || !h.slotsReady(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Collision", rawID)
	if !ok {
		return
	}

	query := r.URL.Query()
	day, slot, err := h.slots.Calendar().ParseSlot(query.Get("date"), query.Get("start"), query.Get("end"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	collision, err := h.slots.CheckCollision(r.Context(), roomID, day, slot)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := collisionResponse{Conflict: collision.Conflict}
	if collision.With != nil {
		with := toIntervalDTO(*collision.With)
		resp.With = &with
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *RoomHandler) slotsReady(w http.ResponseWriter) bool {
	if h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *RoomHandler) roomID(w http.ResponseWriter, r *http.Request, operation, raw string) (int64, bool) {
	id, err := parseRoomID(raw)
	if err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "invalid room id", "raw_id", raw)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return 0, false
	}
	return id, true
}

func parseRoomID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidRoomID
	}
	return id, nil
}

type roomRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:        r.Name,
		Location:    r.Location,
		Capacity:    r.Capacity,
		Description: r.Description,
	}
}

type roomPatchRequest struct {
	Name        *string `json:"name"`
	Location    *string `json:"location"`
	Capacity    *int    `json:"capacity"`
	Description *string `json:"description"`
}

func (r roomPatchRequest) toPatch() application.RoomPatch {
	return application.RoomPatch{
		Name:        r.Name,
		Location:    r.Location,
		Capacity:    r.Capacity,
		Description: r.Description,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:          room.ID,
		Name:        room.Name,
		Location:    room.Location,
		Capacity:    room.Capacity,
		Description: room.Description,
		CreatedAt:   room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type intervalDTO struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func toIntervalDTO(interval scheduler.Interval) intervalDTO {
	return intervalDTO{
		Start: interval.Start.Format(application.ClockLayout),
		End:   interval.End.Format(application.ClockLayout),
	}
}

type intervalsResponse struct {
	RoomID    int64         `json:"room_id"`
	Date      string        `json:"date"`
	Intervals []intervalDTO `json:"intervals"`
}

type collisionResponse struct {
	Conflict bool         `json:"conflict"`
	With     *intervalDTO `json:"with"`
}
