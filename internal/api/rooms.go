package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/eventlog"
)

// ─── Request/Response Types ────────────────────────────────────────

// roomResponse is the JSON view of a room.
type roomResponse struct {
	ID               uint          `json:"id"`
	Name             string        `json:"name"`
	ScreenName       string        `json:"screen_name"`
	ParentID         uint          `json:"parent_id,omitempty"`
	ChildIDs         []uint        `json:"child_ids"`
	Power            bool          `json:"power"`
	Busy             bool          `json:"busy"`
	BusyOutputs      []uint        `json:"busy_outputs"`
	CurrentSources   map[uint]uint `json:"current_sources"`
	LastMainSourceID uint          `json:"last_main_source_id,omitempty"`
	DefaultSourceID  uint          `json:"default_source_id,omitempty"`
	SourceIDs        []uint        `json:"source_ids"`
}

type setPowerRequest struct {
	Power  *bool  `json:"power"`
	Reason string `json:"reason"`
}

type selectSourceRequest struct {
	SourceID    uint `json:"source_id"` // 0 clears the output
	OutputIndex uint `json:"output_index"`
}

// operationResponse reports the state of a power or source request.
type operationResponse struct {
	RoomID      uint      `json:"room_id"`
	Power       *bool     `json:"power,omitempty"`
	SourceID    *uint     `json:"source_id,omitempty"`
	OutputIndex uint      `json:"output_index,omitempty"`
	Status      av.Status `json:"status"`
	Error       string    `json:"error,omitempty"`
}

func newRoomResponse(room *av.Room) roomResponse {
	resp := roomResponse{
		ID:             room.ID(),
		Name:           room.Name(),
		ScreenName:     room.ScreenName(),
		ChildIDs:       room.ChildRooms().IDs(),
		Power:          room.Power(),
		Busy:           room.AnyBusy(),
		BusyOutputs:    room.BusyIndexes(),
		CurrentSources: make(map[uint]uint),
		SourceIDs:      room.Sources().IDs(),
	}
	if parent := room.Parent(); parent != nil {
		resp.ParentID = parent.ID()
	}
	for index, src := range room.CurrentSources() {
		resp.CurrentSources[index] = src.ID()
	}
	if src := room.LastMainSource(); src != nil {
		resp.LastMainSourceID = src.ID()
	}
	if src := room.DefaultSource(); src != nil {
		resp.DefaultSourceID = src.ID()
	}
	return resp
}

func roomResponses(rooms *av.RoomCollection) []roomResponse {
	out := make([]roomResponse, 0, rooms.Len())
	for _, room := range rooms.All() {
		out = append(out, newRoomResponse(room))
	}
	return out
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListRooms returns every room. ?top_level=true drops child rooms and
// ?powered=true keeps only rooms that are on.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.env.Rooms()
	q := r.URL.Query()
	if q.Get("top_level") == "true" {
		rooms = rooms.TopLevel()
	}
	if q.Get("powered") == "true" {
		rooms = rooms.Powered()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": roomResponses(rooms),
		"count": rooms.Len(),
	})
}

// handleGetRoom returns a single room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRoomResponse(room))
}

// handleListRoomSources returns the sources a room can select.
func (s *Server) handleListRoomSources(w http.ResponseWriter, r *http.Request) {
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return
	}
	sources := filterSources(room.Sources(), r)
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sourceResponses(sources),
		"count":   sources.Len(),
	})
}

// handleListChildRooms returns a room's direct children.
func (s *Server) handleListChildRooms(w http.ResponseWriter, r *http.Request) {
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return
	}
	children := room.ChildRooms()
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": roomResponses(children),
		"count": children.Len(),
	})
}

// handleSetRoomPower switches a room on or off.
//
// Returns 202 with status "pending" while the hooks run, or 200 with
// "no_change" when the room is already in the requested state. With
// ?wait=true it blocks until the hooks finish and returns 200, or 502 when a
// hook failed.
func (s *Server) handleSetRoomPower(w http.ResponseWriter, r *http.Request) {
	room, ok := s.controlledRoom(w, r)
	if !ok {
		return
	}

	var req setPowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Power == nil {
		writeBadRequest(w, "body must include \"power\": bool")
		return
	}

	var (
		op  *av.Operation
		err error
	)
	if *req.Power {
		op, err = room.PowerOn()
	} else {
		reason, perr := parsePowerOffReason(req.Reason)
		if perr != nil {
			writeBadRequest(w, perr.Error())
			return
		}
		op, err = room.PowerOff(reason)
	}
	if err != nil {
		s.writeAVError(w, err)
		return
	}

	s.writeOperation(w, r, op, operationResponse{RoomID: room.ID(), Power: req.Power})
}

// handleSelectSource routes a source to one of a room's outputs.
//
// The source must be assigned to the room or global. Responses follow
// handleSetRoomPower; a busy output is 409.
func (s *Server) handleSelectSource(w http.ResponseWriter, r *http.Request) {
	room, ok := s.controlledRoom(w, r)
	if !ok {
		return
	}

	var req selectSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.OutputIndex == 0 {
		req.OutputIndex = av.MainOutput
	}

	var src *av.Source
	if req.SourceID != 0 {
		var err error
		if src, err = s.env.Source(req.SourceID); err != nil {
			s.writeAVError(w, err)
			return
		}
		if !room.Sources().Contains(src) {
			writeBadRequest(w, fmt.Sprintf("source %d is not available in this room", src.ID()))
			return
		}
	}

	op, err := room.SelectSourceAsync(src, req.OutputIndex)
	if err != nil {
		s.writeAVError(w, err)
		return
	}

	sourceID := req.SourceID
	s.writeOperation(w, r, op, operationResponse{
		RoomID:      room.ID(),
		SourceID:    &sourceID,
		OutputIndex: req.OutputIndex,
	})
}

// handleListRoomEvents pages through a room's recorded events, newest first.
// Query parameters: type, since (RFC 3339), limit, offset.
func (s *Server) handleListRoomEvents(w http.ResponseWriter, r *http.Request) {
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return
	}
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event log not configured")
		return
	}

	q := r.URL.Query()
	filter := eventlog.Filter{
		RoomID: room.ID(),
		Type:   av.EventType(q.Get("type")),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list room events failed", "room_id", room.ID(), "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ─── Helpers ───────────────────────────────────────────────────────

// writeOperation answers a power or source request from its operation.
func (s *Server) writeOperation(w http.ResponseWriter, r *http.Request, op *av.Operation, resp operationResponse) {
	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
		defer cancel()
		if err := op.Wait(ctx); err != nil && ctx.Err() != nil {
			resp.Status = op.Status()
			writeJSON(w, http.StatusAccepted, resp)
			return
		}
	}

	resp.Status = op.Status()
	switch resp.Status {
	case av.StatusPending:
		writeJSON(w, http.StatusAccepted, resp)
	case av.StatusFailed:
		if err := op.Err(); err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// roomFromPath resolves {id}, writing 400 or 404 on failure.
func (s *Server) roomFromPath(w http.ResponseWriter, r *http.Request) (*av.Room, bool) {
	id, ok := idParam(w, r)
	if !ok {
		return nil, false
	}
	room, err := s.env.Room(id)
	if err != nil {
		s.writeAVError(w, err)
		return nil, false
	}
	return room, true
}

// controlledRoom resolves {id} and checks the caller may control it.
func (s *Server) controlledRoom(w http.ResponseWriter, r *http.Request) (*av.Room, bool) {
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return nil, false
	}
	if claims := claimsFromContext(r.Context()); claims == nil || !claims.CanControlRoom(room.ID()) {
		writeForbidden(w, "not permitted to control this room")
		return nil, false
	}
	return room, true
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 0)
	if err != nil || id == 0 {
		writeBadRequest(w, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func parsePowerOffReason(v string) (av.PowerOffReason, error) {
	switch reason := av.PowerOffReason(v); reason {
	case "":
		return av.PowerOffUser, nil
	case av.PowerOffUser, av.PowerOffThirdParty, av.PowerOffScheduled:
		return reason, nil
	default:
		return "", fmt.Errorf("unknown power off reason %q", v)
	}
}
