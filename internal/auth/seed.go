package auth

import (
	"context"
	"fmt"
)

// SeedAdmin registers an admin panel on first boot if no active admin
// exists. The generated credentials are logged once and returned; an empty
// ID means seeding was skipped.
func SeedAdmin(ctx context.Context, svc *Service) (id, secret string, err error) {
	count, err := svc.repo.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return "", "", fmt.Errorf("checking admin panels: %w", err)
	}
	if count > 0 {
		svc.logger.Info("admin panel exists, skipping seed")
		return "", "", nil
	}

	panel, secret, err := svc.Register(ctx, "Initial admin", RoleAdmin, 0)
	if err != nil {
		return "", "", fmt.Errorf("creating seed admin panel: %w", err)
	}

	svc.logger.Warn("seed admin panel created",
		"panel_id", panel.ID,
		"secret", secret,
		"action_required", "store this secret and register dedicated panels",
	)
	return panel.ID, secret, nil
}
