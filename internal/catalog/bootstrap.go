package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

// maxParallel bounds concurrent room/source construction.
const maxParallel = 8

// HookFactory supplies the hardware hooks for each catalog entry.
// Either method may return nil to use the av defaults.
type HookFactory interface {
	RoomHooks(room Room) av.RoomHooks
	ActiveUseHook(src Source) av.ActiveUseHook
}

// Bootstrap loads the catalog from repo and registers every room and
// source with env.
//
// Rooms and sources are constructed in parallel; parents, assignments and
// default sources are linked once everything exists. The first error stops
// the remaining work, and a duplicate ID already registered in env surfaces
// as av.ErrDuplicateID.
func Bootstrap(ctx context.Context, repo Repository, env *av.Environment, factory HookFactory) error {
	if env == nil {
		return fmt.Errorf("%w: nil environment", ErrInvalid)
	}
	if factory == nil {
		factory = nopFactory{}
	}

	var (
		rooms       []Room
		sources     []Source
		assignments []Assignment
	)
	load, loadCtx := errgroup.WithContext(ctx)
	load.Go(func() (err error) {
		rooms, err = repo.ListRooms(loadCtx)
		return err
	})
	load.Go(func() (err error) {
		sources, err = repo.ListSources(loadCtx)
		return err
	})
	load.Go(func() (err error) {
		assignments, err = repo.ListAssignments(loadCtx)
		return err
	})
	if err := load.Wait(); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	build, buildCtx := errgroup.WithContext(ctx)
	build.SetLimit(maxParallel)
	for _, room := range rooms {
		build.Go(func() error {
			if err := buildCtx.Err(); err != nil {
				return err
			}
			_, err := av.NewRoom(env, av.RoomOptions{
				ID:         room.ID,
				Name:       room.Name,
				ScreenName: room.ScreenName,
				Hooks:      factory.RoomHooks(room),
			})
			if err != nil {
				return fmt.Errorf("room %d: %w", room.ID, err)
			}
			return nil
		})
	}
	for _, src := range sources {
		build.Go(func() error {
			if err := buildCtx.Err(); err != nil {
				return err
			}
			_, err := av.NewSource(env, av.SourceOptions{
				ID:        src.ID,
				Type:      src.Type,
				Name:      src.Name,
				GroupName: src.GroupName,
				IconName:  src.IconName,
				Priority:  src.Priority,
				DisplayID: src.DisplayID,
				Hook:      factory.ActiveUseHook(src),
			})
			if err != nil {
				return fmt.Errorf("source %d: %w", src.ID, err)
			}
			return nil
		})
	}
	if err := build.Wait(); err != nil {
		return fmt.Errorf("building environment: %w", err)
	}

	return link(env, rooms, assignments)
}

// link wires parents, assignments and default sources between the
// registered rooms and sources.
func link(env *av.Environment, rooms []Room, assignments []Assignment) error {
	for _, room := range rooms {
		if room.ParentID == 0 {
			continue
		}
		child, err := env.Room(room.ID)
		if err != nil {
			return err
		}
		parent, err := env.Room(room.ParentID)
		if err != nil {
			return fmt.Errorf("parent of room %d: %w", room.ID, err)
		}
		if err := child.SetParent(parent); err != nil {
			return fmt.Errorf("parent of room %d: %w", room.ID, err)
		}
	}

	for _, a := range assignments {
		src, err := env.Source(a.SourceID)
		if err != nil {
			return fmt.Errorf("assignment %d->%d: %w", a.SourceID, a.RoomID, err)
		}
		room, err := env.Room(a.RoomID)
		if err != nil {
			return fmt.Errorf("assignment %d->%d: %w", a.SourceID, a.RoomID, err)
		}
		if err := src.AssignRoom(room); err != nil {
			return fmt.Errorf("assignment %d->%d: %w", a.SourceID, a.RoomID, err)
		}
	}

	for _, room := range rooms {
		if room.DefaultSourceID == 0 {
			continue
		}
		r, err := env.Room(room.ID)
		if err != nil {
			return err
		}
		src, err := env.Source(room.DefaultSourceID)
		if err != nil {
			return fmt.Errorf("default source of room %d: %w", room.ID, err)
		}
		r.SetDefaultSource(src)
	}
	return nil
}

type nopFactory struct{}

func (nopFactory) RoomHooks(Room) av.RoomHooks           { return nil }
func (nopFactory) ActiveUseHook(Source) av.ActiveUseHook { return nil }
