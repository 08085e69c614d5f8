// Package catalog persists the room and source catalog in SQLite and builds
// the live av.Environment from it at start-up.
//
// The catalog is the configured shape of the site: rooms (with their parent
// and default source), sources (type, grouping, display binding) and which
// rooms each source is assigned to. Runtime state such as power and current
// selections lives only in the av package.
//
//	repo := catalog.NewSQLiteRepository(db.DB)
//	if _, err := catalog.Seed(ctx, repo, cfg.Catalog); err != nil {
//	    return err
//	}
//	if err := catalog.Bootstrap(ctx, repo, env, factory); err != nil {
//	    return err
//	}
package catalog
