package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"relayconf/internal/storage"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

var _ storage.Storage = (*DB)(nil)

// Open creates a new SQLite storage instance using the named driver
func Open(dbPath, driver string) (*DB, error) {
	dsn, err := buildDSN(dbPath, driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &DB{db: db}

	// Run migrations
	if err := runMigrations(store); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// buildDSN enables foreign keys, WAL and a busy timeout in the syntax each
// driver understands.
func buildDSN(dbPath, driver string) (string, error) {
	switch driver {
	case DriverCGO:
		return dbPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", nil
	case DriverPure:
		return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver: %s (available: %s, %s)", driver, DriverCGO, DriverPure)
	}
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// withTx runs fn inside one transaction so a batch call stays atomic.
func (d *DB) withTx(ctx context.Context, fn func(h dbHandle) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Group operations ───────────────────────────────────────────────────────

const groupColumns = `id, name, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(s rowScanner) (*models.Group, error) {
	group := &models.Group{}
	err := s.Scan(&group.ID, &group.Name, &group.Active, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return group, nil
}

func queryGroups(ctx context.Context, h dbHandle, query string, args ...interface{}) ([]*models.Group, error) {
	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (d *DB) CreateGroup(ctx context.Context, group *models.Group) error {
	return createGroup(ctx, d.db, group)
}

func createGroup(ctx context.Context, h dbHandle, group *models.Group) error {
	result, err := h.ExecContext(ctx,
		`INSERT INTO groups (name, active) VALUES (?, ?)`,
		group.Name, group.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	group.ID = id
	return nil
}

func (d *DB) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %d: %w", id, pkgerrors.ErrGroupNotFound)
	}
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (d *DB) GetAllGroups(ctx context.Context) ([]*models.Group, error) {
	return queryGroups(ctx, d.db, `SELECT `+groupColumns+` FROM groups ORDER BY name ASC, id ASC`)
}

// GetActiveGroups returns every row flagged active. More than one row means
// the single-active invariant is broken.
func (d *DB) GetActiveGroups(ctx context.Context) ([]*models.Group, error) {
	return queryGroups(ctx, d.db, `SELECT `+groupColumns+` FROM groups WHERE active = 1 ORDER BY id ASC`)
}

func (d *DB) CountGroups(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&n)
	return n, err
}

// UpdateGroups replaces the mutable fields of existing rows in one
// transaction. Missing keys are skipped.
func (d *DB) UpdateGroups(ctx context.Context, groups []*models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	return d.withTx(ctx, func(h dbHandle) error {
		for _, g := range groups {
			if _, err := h.ExecContext(ctx, `UPDATE groups SET name = ? WHERE id = ?`, g.Name, g.ID); err != nil {
				return fmt.Errorf("failed to update group %d: %w", g.ID, err)
			}
		}
		return nil
	})
}

func (d *DB) SetGroupActive(ctx context.Context, id int64, active bool) error {
	_, err := d.db.ExecContext(ctx, `UPDATE groups SET active = ? WHERE id = ?`, active, id)
	return err
}

func (d *DB) DeleteGroups(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return d.withTx(ctx, func(h dbHandle) error {
		for _, id := range ids {
			if err := deleteConfigurationsByGroup(ctx, h, id); err != nil {
				return err
			}
			if _, err := h.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete group %d: %w", id, err)
			}
		}
		return nil
	})
}

// ─── Configuration operations ───────────────────────────────────────────────

const configurationColumns = `id, name, host, relay_port, socks_port, priority, group_id, created_at, updated_at`

func scanConfiguration(s rowScanner) (*models.Configuration, error) {
	c := &models.Configuration{}
	err := s.Scan(
		&c.ID, &c.Name, &c.Host, &c.RelayPort, &c.SocksPort,
		&c.Priority, &c.GroupID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func queryConfigurations(ctx context.Context, h dbHandle, query string, args ...interface{}) ([]*models.Configuration, error) {
	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*models.Configuration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (d *DB) CreateConfiguration(ctx context.Context, config *models.Configuration) error {
	return createConfiguration(ctx, d.db, config)
}

func createConfiguration(ctx context.Context, h dbHandle, config *models.Configuration) error {
	query := `
		INSERT INTO configurations (name, host, relay_port, socks_port, priority, group_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := h.ExecContext(ctx, query,
		config.Name, config.Host, config.RelayPort, config.SocksPort,
		config.Priority, config.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	config.ID = id
	return nil
}

func (d *DB) GetConfiguration(ctx context.Context, id int64) (*models.Configuration, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+configurationColumns+` FROM configurations WHERE id = ?`, id)
	c, err := scanConfiguration(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("configuration %d: %w", id, pkgerrors.ErrConfigurationNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) GetAllConfigurations(ctx context.Context) ([]*models.Configuration, error) {
	return queryConfigurations(ctx, d.db,
		`SELECT `+configurationColumns+` FROM configurations ORDER BY name ASC, id ASC`)
}

func (d *DB) GetConfigurationsByGroup(ctx context.Context, groupID int64) ([]*models.Configuration, error) {
	return queryConfigurations(ctx, d.db,
		`SELECT `+configurationColumns+` FROM configurations WHERE group_id = ? ORDER BY priority ASC, id ASC`,
		groupID)
}

func (d *DB) CountConfigurationsByGroup(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM configurations WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}

// GetActiveConfiguration derives the active configuration: the first by
// priority in the active group. It returns nil, nil when there is none.
func (d *DB) GetActiveConfiguration(ctx context.Context) (*models.Configuration, error) {
	query := `
		SELECT c.id, c.name, c.host, c.relay_port, c.socks_port, c.priority, c.group_id, c.created_at, c.updated_at
		FROM configurations c
		JOIN groups g ON g.id = c.group_id
		WHERE g.active = 1
		ORDER BY c.priority ASC, c.id ASC
		LIMIT 1
	`
	c, err := scanConfiguration(d.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateConfigurations writes the whole batch in one transaction. Rows whose
// key does not exist are skipped. The owning group is fixed at insert time.
func (d *DB) UpdateConfigurations(ctx context.Context, configs []*models.Configuration) error {
	if len(configs) == 0 {
		return nil
	}
	query := `
		UPDATE configurations
		SET name = ?, host = ?, relay_port = ?, socks_port = ?, priority = ?
		WHERE id = ?
	`
	return d.withTx(ctx, func(h dbHandle) error {
		for _, c := range configs {
			_, err := h.ExecContext(ctx, query,
				c.Name, c.Host, c.RelayPort, c.SocksPort, c.Priority, c.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update configuration %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (d *DB) DeleteConfigurations(ctx context.Context, ids []int64) error {
	return deleteConfigurations(ctx, d.db, ids)
}

func deleteConfigurations(ctx context.Context, h dbHandle, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := h.ExecContext(ctx, `DELETE FROM configurations WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete configurations: %w", err)
	}
	return nil
}

// ReorderConfigurations writes the priorities of order and deletes deleteIDs
// in one transaction. Only the priority column of order is written, and only
// for rows of groupID.
func (d *DB) ReorderConfigurations(ctx context.Context, groupID int64, order []*models.Configuration, deleteIDs []int64) error {
	query := `UPDATE configurations SET priority = ? WHERE id = ? AND group_id = ?`
	return d.withTx(ctx, func(h dbHandle) error {
		if err := deleteConfigurations(ctx, h, deleteIDs); err != nil {
			return err
		}
		for _, c := range order {
			if _, err := h.ExecContext(ctx, query, c.Priority, c.ID, groupID); err != nil {
				return fmt.Errorf("failed to reorder configuration %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (d *DB) DeleteConfigurationsByGroup(ctx context.Context, groupID int64) error {
	return deleteConfigurationsByGroup(ctx, d.db, groupID)
}

func deleteConfigurationsByGroup(ctx context.Context, h dbHandle, groupID int64) error {
	_, err := h.ExecContext(ctx, `DELETE FROM configurations WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete configurations of group %d: %w", groupID, err)
	}
	return nil
}

// ─── Reset and demo data ────────────────────────────────────────────────────

func (d *DB) DeleteAll(ctx context.Context) error {
	return d.withTx(ctx, deleteAll(ctx))
}

func deleteAll(ctx context.Context) func(h dbHandle) error {
	return func(h dbHandle) error {
		if _, err := h.ExecContext(ctx, `DELETE FROM configurations`); err != nil {
			return err
		}
		_, err := h.ExecContext(ctx, `DELETE FROM groups`)
		return err
	}
}

// Seed replaces the whole store with the demo groups and five relays in the
// first group.
func (d *DB) Seed(ctx context.Context) error {
	return d.withTx(ctx, func(h dbHandle) error {
		if err := deleteAll(ctx)(h); err != nil {
			return err
		}

		var first int64
		for i, name := range []string{"Home", "Work", "Lab", "Classroom", "Campus"} {
			g := &models.Group{Name: name}
			if err := createGroup(ctx, h, g); err != nil {
				return err
			}
			if i == 0 {
				first = g.ID
			}
		}

		for i := 1; i <= 5; i++ {
			c := &models.Configuration{
				Name:      fmt.Sprintf("Relay %d", i),
				Host:      fmt.Sprintf("192.168.0.%d", i+1),
				RelayPort: 7000,
				SocksPort: 8090,
				Priority:  i,
				GroupID:   first,
			}
			if err := createConfiguration(ctx, h, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := d.db.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
