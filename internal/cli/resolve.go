package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"relayconf/internal/storage/models"
)

// resolveGroup finds a group by ID or, failing that, by name. Names are not
// unique; the first match in name order wins.
func resolveGroup(ctx context.Context, arg string) (*models.Group, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if g, err := appInstance.Groups.Get(ctx, id); err == nil {
			return g, nil
		}
	}
	groups, err := appInstance.Groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, arg) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group not found: %s", arg)
}

// resolveConfiguration finds a configuration by ID or by name.
func resolveConfiguration(ctx context.Context, arg string) (*models.Configuration, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if c, err := appInstance.Configs.Get(ctx, id); err == nil {
			return c, nil
		}
	}
	configs, err := appInstance.Configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get configurations: %w", err)
	}
	for _, c := range configs {
		if strings.EqualFold(c.Name, arg) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("configuration not found: %s", arg)
}

func groupNames(ctx context.Context) map[int64]string {
	names := make(map[int64]string)
	groups, err := appInstance.Groups.List(ctx)
	if err != nil {
		return names
	}
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	return names
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}
