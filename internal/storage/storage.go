package storage

import (
	"context"

	"relayconf/internal/storage/models"
)

// Storage defines the durable store. Every call is atomic on its own; callers
// get no multi-call transactions, so composite invariants are the
// repositories' job.
type Storage interface {
	// Group operations
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	GetAllGroups(ctx context.Context) ([]*models.Group, error) // ordered by name
	GetActiveGroups(ctx context.Context) ([]*models.Group, error)
	CountGroups(ctx context.Context) (int, error)
	UpdateGroups(ctx context.Context, groups []*models.Group) error // never touches the active flag
	SetGroupActive(ctx context.Context, id int64, active bool) error
	DeleteGroups(ctx context.Context, ids []int64) error // cascades to configurations

	// Configuration operations
	CreateConfiguration(ctx context.Context, config *models.Configuration) error
	GetConfiguration(ctx context.Context, id int64) (*models.Configuration, error)
	GetAllConfigurations(ctx context.Context) ([]*models.Configuration, error) // ordered by name
	GetConfigurationsByGroup(ctx context.Context, groupID int64) ([]*models.Configuration, error)
	CountConfigurationsByGroup(ctx context.Context, groupID int64) (int, error)
	GetActiveConfiguration(ctx context.Context) (*models.Configuration, error)
	UpdateConfigurations(ctx context.Context, configs []*models.Configuration) error
	DeleteConfigurations(ctx context.Context, ids []int64) error
	// ReorderConfigurations sets the priorities of order and deletes
	// deleteIDs atomically. Other columns are left alone.
	ReorderConfigurations(ctx context.Context, groupID int64, order []*models.Configuration, deleteIDs []int64) error
	DeleteConfigurationsByGroup(ctx context.Context, groupID int64) error

	// Reset and demo data
	DeleteAll(ctx context.Context) error
	Seed(ctx context.Context) error

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Close closes the storage connection
	Close() error
}
