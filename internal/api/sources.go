package api

import (
	"net/http"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

// sourceResponse is the JSON view of a source.
type sourceResponse struct {
	ID                   uint   `json:"id"`
	Type                 string `json:"type"`
	Name                 string `json:"name"`
	GroupName            string `json:"group,omitempty"`
	IconName             string `json:"icon,omitempty"`
	Priority             uint   `json:"priority"`
	DisplayID            uint   `json:"display_id,omitempty"`
	Presentation         bool   `json:"presentation"`
	WirelessPresentation bool   `json:"wireless_presentation"`
	Media                bool   `json:"media"`
	Conference           bool   `json:"conference"`
	ActiveUseCount       int    `json:"active_use_count"`
	ActiveVideo          bool   `json:"active_video"`
	RoomIDs              []uint `json:"room_ids"`
}

func newSourceResponse(src *av.Source) sourceResponse {
	return sourceResponse{
		ID:                   src.ID(),
		Type:                 src.Type().String(),
		Name:                 src.Name(),
		GroupName:            src.GroupName(),
		IconName:             src.IconName(),
		Priority:             src.Priority(),
		DisplayID:            src.DisplayID(),
		Presentation:         src.IsPresentationSource(),
		WirelessPresentation: src.IsWirelessPresentationSource(),
		Media:                src.IsMediaSource(),
		Conference:           src.IsConferenceSource(),
		ActiveUseCount:       src.ActiveUseCount(),
		ActiveVideo:          src.HasActiveVideo(),
		RoomIDs:              src.AssignedRooms().IDs(),
	}
}

func sourceResponses(sources *av.SourceCollection) []sourceResponse {
	out := make([]sourceResponse, 0, sources.Len())
	for _, src := range sources.All() {
		out = append(out, newSourceResponse(src))
	}
	return out
}

// filterSources applies the optional ?type=, ?group= and ?in_use=true
// query filters.
func filterSources(sources *av.SourceCollection, r *http.Request) *av.SourceCollection {
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		typ, err := av.ParseSourceType(v)
		if err != nil {
			return av.NewSourceCollection()
		}
		sources = sources.OfType(typ)
	}
	if v := q.Get("group"); v != "" {
		sources = sources.InGroup(v)
	}
	if q.Get("in_use") == "true" {
		sources = sources.InUse()
	}
	return sources
}

// handleListSources returns every source, optionally filtered.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources := filterSources(s.env.Sources(), r)
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sourceResponses(sources),
		"count":   sources.Len(),
	})
}

// handleGetSource returns a single source.
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	src, err := s.env.Source(id)
	if err != nil {
		s.writeAVError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponse(src))
}
