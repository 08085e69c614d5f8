package api

import (
	"net/http"
	"reflect"
	"testing"
)

func TestListSources(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		query string
		want  []uint
	}{
		{"", []uint{2, 3, 1}},
		{"?type=pc", []uint{1}},
		{"?type=apple_tv", []uint{2}},
		{"?type=laserdisc", []uint{}},
		{"?group=Lectern", []uint{1}},
		{"?in_use=true", []uint{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/sources"+tt.query, f.panelToken, nil)
			expectStatus(t, rec, http.StatusOK)
			body := decode[struct {
				Sources []sourceResponse `json:"sources"`
				Count   int              `json:"count"`
			}](t, rec)
			ids := []uint{}
			for _, s := range body.Sources {
				ids = append(ids, s.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) || body.Count != len(tt.want) {
				t.Errorf("ids = %v (count %d), want %v", ids, body.Count, tt.want)
			}
		})
	}
}

func TestGetSource(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sources/1", f.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	src := decode[sourceResponse](t, rec)
	if src.Type != "pc" || src.Name != "Lectern PC" || src.GroupName != "Lectern" || !src.Presentation {
		t.Errorf("source = %+v", src)
	}
	if !reflect.DeepEqual(src.RoomIDs, []uint{1, 2}) {
		t.Errorf("room_ids = %v, want [1 2]", src.RoomIDs)
	}

	expectStatus(t, f.do(t, http.MethodGet, "/api/v1/sources/99", f.adminToken, nil), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodGet, "/api/v1/sources/x", f.adminToken, nil), http.StatusBadRequest)
}

func TestSourceActiveUseReflectsSelections(t *testing.T) {
	f := newFixture(t)
	for _, room := range []string{"1", "2"} {
		expectStatus(t, f.do(t, http.MethodPut, "/api/v1/rooms/"+room+"/source?wait=true", f.adminToken,
			selectSourceRequest{SourceID: 1}), http.StatusOK)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sources/1", f.adminToken, nil)
	if src := decode[sourceResponse](t, rec); src.ActiveUseCount != 2 {
		t.Errorf("active_use_count = %d, want 2", src.ActiveUseCount)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sources?in_use=true", f.adminToken, nil)
	if n := decode[map[string]any](t, rec)["count"]; n != float64(1) {
		t.Errorf("in_use count = %v, want 1", n)
	}
}
