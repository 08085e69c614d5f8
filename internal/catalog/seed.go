package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/config"
)

// SeedResult counts what Seed created.
type SeedResult struct {
	Rooms       int
	Sources     int
	Assignments int
}

// Seed writes the rooms and sources from the catalog config section.
// Entries whose ID already exists are left untouched, so Seed is safe to run
// on every start.
//
// Rooms are inserted first without parents, then parents are linked, so the
// config may list children before their parents.
func Seed(ctx context.Context, repo Repository, cfg config.CatalogConfig) (SeedResult, error) {
	var res SeedResult

	created := make(map[uint]bool, len(cfg.Rooms))
	for _, seed := range cfg.Rooms {
		room := Room{
			ID:              seed.ID,
			Name:            seed.Name,
			ScreenName:      seed.ScreenName,
			DefaultSourceID: seed.DefaultSource,
		}
		if room.Name == "" {
			room.Name = fmt.Sprintf("Room %d", seed.ID)
		}
		err := repo.CreateRoom(ctx, room)
		switch {
		case err == nil:
			res.Rooms++
			created[seed.ID] = true
		case errors.Is(err, ErrRoomExists):
		default:
			return res, fmt.Errorf("seeding room %d: %w", seed.ID, err)
		}
	}

	for _, seed := range cfg.Rooms {
		if seed.ParentID == 0 || !created[seed.ID] {
			continue
		}
		if err := repo.SetRoomParent(ctx, seed.ID, seed.ParentID); err != nil {
			return res, fmt.Errorf("seeding parent of room %d: %w", seed.ID, err)
		}
	}

	for _, seed := range cfg.Sources {
		typ := av.SourceTypeUnknown
		if seed.Type != "" {
			var err error
			if typ, err = av.ParseSourceType(seed.Type); err != nil {
				return res, fmt.Errorf("seeding source %d: %w", seed.ID, err)
			}
		}
		src := Source{
			ID:        seed.ID,
			Type:      typ,
			Name:      seed.Name,
			GroupName: seed.GroupName,
			IconName:  seed.IconName,
			Priority:  seed.Priority,
			DisplayID: seed.DisplayID,
		}
		if src.Name == "" {
			src.Name = fmt.Sprintf("Source %d", seed.ID)
		}
		err := repo.CreateSource(ctx, src)
		switch {
		case err == nil:
			res.Sources++
		case errors.Is(err, ErrSourceExists):
			continue
		default:
			return res, fmt.Errorf("seeding source %d: %w", seed.ID, err)
		}

		for _, roomID := range seed.Rooms {
			if err := repo.AssignSource(ctx, seed.ID, roomID); err != nil {
				return res, fmt.Errorf("seeding source %d: %w", seed.ID, err)
			}
			res.Assignments++
		}
	}

	return res, nil
}
