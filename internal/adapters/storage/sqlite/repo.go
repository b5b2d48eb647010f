package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would get its own memory database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalog_categories (
			id TEXT PRIMARY KEY,
			section_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(section_id) REFERENCES sections(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL,
			FOREIGN KEY(category_id) REFERENCES catalog_categories(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE,
			stage TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			duration_days INTEGER NOT NULL DEFAULT 1,
			completed INTEGER NOT NULL DEFAULT 0,
			assignee TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(item_id) REFERENCES catalog_items(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS manual_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			duration_days INTEGER NOT NULL DEFAULT 1,
			budget_amount REAL NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			assignee TEXT NOT NULL DEFAULT '',
			catalog_category_id TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS custom_categories (
			id TEXT PRIMARY KEY,
			section_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(section_id) REFERENCES sections(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS activated_keys (
			key TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			section_id TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_categories_section ON catalog_categories(section_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_category ON catalog_items(category_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_manual_tasks_scope ON manual_tasks(category, catalog_category_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_created_at ON change_events(created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// withTx runs fn in one transaction and rolls back when it fails.
func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateSection creates section.
func (r *Repository) CreateSection(ctx context.Context, s domain.Section) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections(id, name, position, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.ID, s.Name, s.Position, s.Active, ts(s.CreatedAt), ts(s.UpdatedAt)); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntitySection, s.ID, domain.ChangeOperationCreate, s.ID, "", map[string]string{
			"name": s.Name,
		}))
	})
}

// UpdateSection updates state for the requested operation.
func (r *Repository) UpdateSection(ctx context.Context, s domain.Section) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sections
			SET name = ?, position = ?, active = ?, updated_at = ?
			WHERE id = ?
		`, s.Name, s.Position, s.Active, ts(s.UpdatedAt), s.ID)
		if err != nil {
			return err
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntitySection, s.ID, domain.ChangeOperationUpdate, s.ID, "", map[string]string{
			"active": strconv.FormatBool(s.Active),
		}))
	})
}

// GetSection returns section.
func (r *Repository) GetSection(ctx context.Context, id string) (domain.Section, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, position, active, created_at, updated_at
		FROM sections
		WHERE id = ?
	`, id)
	section, err := scanSection(row)
	if err != nil {
		return domain.Section{}, err
	}
	categories, err := r.listCategories(ctx, id)
	if err != nil {
		return domain.Section{}, err
	}
	section.Categories = categories[id]
	return section, nil
}

// ListSections lists sections.
func (r *Repository) ListSections(ctx context.Context) ([]domain.Section, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, position, active, created_at, updated_at
		FROM sections
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Section{}
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, section)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	categories, err := r.listCategories(ctx, "")
	if err != nil {
		return nil, err
	}
	for idx := range out {
		out[idx].Categories = categories[out[idx].ID]
	}
	return out, nil
}

// listCategories returns catalog categories by section id, each with its ordered item
// ids. A blank sectionID lists every section.
func (r *Repository) listCategories(ctx context.Context, sectionID string) (map[string][]domain.CatalogCategory, error) {
	query := `
		SELECT id, section_id, name, sort_order, created_at, updated_at
		FROM catalog_categories
	`
	args := []any{}
	if sectionID != "" {
		query += ` WHERE section_id = ?`
		args = append(args, sectionID)
	}
	query += ` ORDER BY sort_order ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type ref struct {
		section string
		idx     int
	}
	out := map[string][]domain.CatalogCategory{}
	byID := map[string]ref{}
	for rows.Next() {
		var (
			c          domain.CatalogCategory
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&c.ID, &c.SectionID, &c.Name, &c.Order, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTS(createdRaw)
		c.UpdatedAt = parseTS(updatedRaw)
		byID[c.ID] = ref{section: c.SectionID, idx: len(out[c.SectionID])}
		out[c.SectionID] = append(out[c.SectionID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id
		FROM catalog_items
		ORDER BY sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var itemID, categoryID string
		if err := itemRows.Scan(&itemID, &categoryID); err != nil {
			return nil, err
		}
		at, ok := byID[categoryID]
		if !ok {
			continue
		}
		out[at.section][at.idx].ItemIDs = append(out[at.section][at.idx].ItemIDs, itemID)
	}
	return out, itemRows.Err()
}

// CreateCatalogCategory inserts a catalog category or replaces the stored one.
func (r *Repository) CreateCatalogCategory(ctx context.Context, c domain.CatalogCategory) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_categories(id, section_id, name, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				section_id = excluded.section_id,
				name = excluded.name,
				sort_order = excluded.sort_order,
				updated_at = excluded.updated_at
		`, c.ID, c.SectionID, c.Name, c.Order, ts(c.CreatedAt), ts(c.UpdatedAt)); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCategory, c.ID, domain.ChangeOperationStructure, c.SectionID, "", map[string]string{
			"name":  c.Name,
			"order": strconv.Itoa(c.Order),
		}))
	})
}

// UpdateCatalogCategoryOrders rewrites sibling orders in one transaction.
func (r *Repository) UpdateCatalogCategoryOrders(ctx context.Context, sectionID string, categories []domain.CatalogCategory) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range categories {
			res, err := tx.ExecContext(ctx, `
				UPDATE catalog_categories
				SET sort_order = ?, updated_at = ?
				WHERE id = ? AND section_id = ?
			`, c.Order, ts(c.UpdatedAt), c.ID, sectionID)
			if err != nil {
				return err
			}
			if err := translateNoRows(res); err != nil {
				return err
			}
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCategory, sectionID, domain.ChangeOperationReorder, sectionID, "", map[string]string{
			"count": strconv.Itoa(len(categories)),
		}))
	})
}

// CreateCatalogItem inserts a catalog item or replaces the stored one.
func (r *Repository) CreateCatalogItem(ctx context.Context, item domain.CatalogItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_items(id, category_id, name, sort_order)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category_id = excluded.category_id,
				name = excluded.name,
				sort_order = excluded.sort_order
		`, item.ID, item.CategoryID, item.Name, item.Order); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCatalogItem, item.ID, domain.ChangeOperationCreate, "", "", map[string]string{
			"category_id": item.CategoryID,
			"name":        item.Name,
		}))
	})
}

// ListCatalogItems lists catalog items with their bound tasks.
func (r *Repository) ListCatalogItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			i.id, i.category_id, i.name, i.sort_order,
			t.id, t.stage, t.start_date, t.end_date, t.duration_days, t.completed, t.assignee, t.parent_id, t.sort_order, t.updated_at
		FROM catalog_items i
		LEFT JOIN scheduled_tasks t ON t.item_id = i.id
		ORDER BY i.category_id ASC, i.sort_order ASC, i.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CatalogItem{}
	for rows.Next() {
		var (
			item      domain.CatalogItem
			taskID    sql.NullString
			stage     sql.NullString
			start     sql.NullString
			end       sql.NullString
			duration  sql.NullInt64
			completed sql.NullBool
			assignee  sql.NullString
			parentID  sql.NullString
			order     sql.NullInt64
			updated   sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.CategoryID, &item.Name, &item.Order,
			&taskID, &stage, &start, &end, &duration, &completed, &assignee, &parentID, &order, &updated,
		); err != nil {
			return nil, err
		}
		if taskID.Valid {
			item.Task = &domain.ScheduledTask{
				ID:           taskID.String,
				ItemID:       item.ID,
				Stage:        stage.String,
				StartDate:    parseNullTS(start),
				EndDate:      parseNullTS(end),
				DurationDays: int(duration.Int64),
				Completed:    completed.Bool,
				Assignee:     assignee.String,
				ParentID:     parentID.String,
				Order:        int(order.Int64),
				UpdatedAt:    parseTS(updated.String),
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetScheduledTask returns scheduled task.
func (r *Repository) GetScheduledTask(ctx context.Context, id string) (domain.ScheduledTask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, item_id, stage, start_date, end_date, duration_days, completed, assignee, parent_id, sort_order, updated_at
		FROM scheduled_tasks
		WHERE id = ?
	`, id)
	var (
		t          domain.ScheduledTask
		start      sql.NullString
		end        sql.NullString
		updatedRaw string
	)
	if err := row.Scan(&t.ID, &t.ItemID, &t.Stage, &start, &end, &t.DurationDays, &t.Completed, &t.Assignee, &t.ParentID, &t.Order, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ScheduledTask{}, app.ErrNotFound
		}
		return domain.ScheduledTask{}, err
	}
	t.StartDate = parseNullTS(start)
	t.EndDate = parseNullTS(end)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// UpsertScheduledTask inserts or replaces the task bound to one catalog item.
func (r *Repository) UpsertScheduledTask(ctx context.Context, t domain.ScheduledTask) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM scheduled_tasks WHERE id = ?`, t.ID).Scan(&existing); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_tasks(id, item_id, stage, start_date, end_date, duration_days, completed, assignee, parent_id, sort_order, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				item_id = excluded.item_id,
				stage = excluded.stage,
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				duration_days = excluded.duration_days,
				completed = excluded.completed,
				assignee = excluded.assignee,
				parent_id = excluded.parent_id,
				sort_order = excluded.sort_order,
				updated_at = excluded.updated_at
		`,
			t.ID,
			t.ItemID,
			t.Stage,
			nullableTS(t.StartDate),
			nullableTS(t.EndDate),
			t.DurationDays,
			t.Completed,
			t.Assignee,
			t.ParentID,
			t.Order,
			ts(t.UpdatedAt),
		); err != nil {
			return err
		}
		op := domain.ChangeOperationUpdate
		if existing == 0 {
			op = domain.ChangeOperationCreate
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityScheduledTask, t.ID, op, "", domain.NormalizeStage(t.Stage), map[string]string{
			"item_id": t.ItemID,
			"order":   strconv.Itoa(t.Order),
		}))
	})
}

// CreateManualTask creates manual task.
func (r *Repository) CreateManualTask(ctx context.Context, t domain.ManualTask) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO manual_tasks(
				id, name, category, start_date, end_date, duration_days, budget_amount, completed,
				assignee, catalog_category_id, parent_id, sort_order, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID,
			t.Name,
			t.Category,
			nullableTS(t.StartDate),
			nullableTS(t.EndDate),
			t.DurationDays,
			t.BudgetAmount,
			t.Completed,
			t.Assignee,
			t.CatalogCategoryID,
			t.ParentID,
			t.Order,
			ts(t.CreatedAt),
			ts(t.UpdatedAt),
		); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityManualTask, t.ID, domain.ChangeOperationCreate, "", t.Stage(), map[string]string{
			"name":        t.Name,
			"category_id": t.CatalogCategoryID,
			"order":       strconv.Itoa(t.Order),
		}))
	})
}

// UpdateManualTask updates state for the requested operation.
func (r *Repository) UpdateManualTask(ctx context.Context, t domain.ManualTask) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := getManualTask(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE manual_tasks
			SET name = ?, category = ?, start_date = ?, end_date = ?, duration_days = ?, budget_amount = ?, completed = ?,
				assignee = ?, catalog_category_id = ?, parent_id = ?, sort_order = ?, updated_at = ?
			WHERE id = ?
		`,
			t.Name,
			t.Category,
			nullableTS(t.StartDate),
			nullableTS(t.EndDate),
			t.DurationDays,
			t.BudgetAmount,
			t.Completed,
			t.Assignee,
			t.CatalogCategoryID,
			t.ParentID,
			t.Order,
			ts(t.UpdatedAt),
			t.ID,
		); err != nil {
			return err
		}
		op := domain.ChangeOperationUpdate
		metadata := map[string]string{}
		if prev.Stage() != t.Stage() || prev.CatalogCategoryID != t.CatalogCategoryID {
			op = domain.ChangeOperationMove
			metadata["from_stage"] = string(prev.Stage())
			metadata["to_stage"] = string(t.Stage())
			metadata["from_category_id"] = prev.CatalogCategoryID
			metadata["to_category_id"] = t.CatalogCategoryID
		}
		if fields := changedManualFields(prev, t); len(fields) > 0 {
			metadata["changed_fields"] = strings.Join(fields, ",")
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityManualTask, t.ID, op, "", t.Stage(), metadata))
	})
}

// GetManualTask returns manual task.
func (r *Repository) GetManualTask(ctx context.Context, id string) (domain.ManualTask, error) {
	return getManualTask(ctx, r.db, id)
}

// ListManualTasks lists manual tasks.
func (r *Repository) ListManualTasks(ctx context.Context) ([]domain.ManualTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+manualTaskColumns+`
		FROM manual_tasks
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ManualTask{}
	for rows.Next() {
		t, err := scanManualTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTasks deletes manual and scheduled tasks by id in one transaction. Unknown ids
// are skipped.
func (r *Repository) DeleteTasks(ctx context.Context, ids []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return deleteTasks(ctx, tx, ids)
	})
}

func deleteTasks(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, id := range ids {
		for _, table := range []struct {
			name   string
			entity string
		}{
			{name: "manual_tasks", entity: domain.EntityManualTask},
			{name: "scheduled_tasks", entity: domain.EntityScheduledTask},
		} {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+table.name+` WHERE id = ?`, id)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				continue
			}
			if err := insertChangeEvent(ctx, tx, newEvent(ctx, table.entity, id, domain.ChangeOperationDelete, "", "", nil)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyCascade deletes tasks, then custom categories, then activation keys in one
// transaction. A missing custom category aborts the whole cascade.
func (r *Repository) ApplyCascade(ctx context.Context, c app.Cascade) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteTasks(ctx, tx, c.TaskIDs); err != nil {
			return err
		}
		for _, id := range c.CustomCategoryIDs {
			if err := deleteCustomCategory(ctx, tx, id); err != nil {
				return fmt.Errorf("custom category %q: %w", id, err)
			}
		}
		for _, key := range c.DeactivateKeys {
			if err := setActivation(ctx, tx, key, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTaskOrders rewrites the sibling orders of one segment in one transaction and
// records a single reorder event against the segment key.
func (r *Repository) UpdateTaskOrders(ctx context.Context, segmentKey string, orders []app.TaskOrder) error {
	if len(orders) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stageKey, _, _ := strings.Cut(segmentKey, "::")
	sectionID, stage, _ := domain.ParseStageKey(stageKey)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, o := range orders {
			table := "scheduled_tasks"
			if o.Manual {
				table = "manual_tasks"
			}
			res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ?, updated_at = ? WHERE id = ?`, o.Order, ts(now), o.TaskID)
			if err != nil {
				return err
			}
			if err := translateNoRows(res); err != nil {
				return fmt.Errorf("task %q: %w", o.TaskID, err)
			}
		}
		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.TaskID)
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntitySegment, segmentKey, domain.ChangeOperationReorder, sectionID, stage, map[string]string{
			"order": strings.Join(ids, ","),
		}))
	})
}

// CreateCustomCategory creates custom category.
func (r *Repository) CreateCustomCategory(ctx context.Context, c domain.CustomCategory) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO custom_categories(id, section_id, stage, name, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.SectionID, string(c.Stage), c.Name, c.Order, ts(c.CreatedAt), ts(c.UpdatedAt)); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCustomCategory, c.ID, domain.ChangeOperationCreate, c.SectionID, c.Stage, map[string]string{
			"name": c.Name,
		}))
	})
}

// UpdateCustomCategory updates state for the requested operation.
func (r *Repository) UpdateCustomCategory(ctx context.Context, c domain.CustomCategory) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE custom_categories
			SET name = ?, sort_order = ?, updated_at = ?
			WHERE id = ?
		`, c.Name, c.Order, ts(c.UpdatedAt), c.ID)
		if err != nil {
			return err
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCustomCategory, c.ID, domain.ChangeOperationUpdate, c.SectionID, c.Stage, map[string]string{
			"name": c.Name,
		}))
	})
}

// DeleteCustomCategory deletes custom category.
func (r *Repository) DeleteCustomCategory(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return deleteCustomCategory(ctx, tx, id)
	})
}

func deleteCustomCategory(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM custom_categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := translateNoRows(res); err != nil {
		return err
	}
	return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityCustomCategory, id, domain.ChangeOperationDelete, "", "", nil))
}

// ListCustomCategories lists custom categories.
func (r *Repository) ListCustomCategories(ctx context.Context) ([]domain.CustomCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, section_id, stage, name, sort_order, created_at, updated_at
		FROM custom_categories
		ORDER BY section_id ASC, stage ASC, sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CustomCategory{}
	for rows.Next() {
		var (
			c          domain.CustomCategory
			stageRaw   string
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&c.ID, &c.SectionID, &stageRaw, &c.Name, &c.Order, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		c.Stage = domain.NormalizeStage(stageRaw)
		c.CreatedAt = parseTS(createdRaw)
		c.UpdatedAt = parseTS(updatedRaw)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetActivation adds or removes one activation key.
func (r *Repository) SetActivation(ctx context.Context, key string, enabled bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return setActivation(ctx, tx, key, enabled)
	})
}

func setActivation(ctx context.Context, tx *sql.Tx, key string, enabled bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrInvalidID
	}
	var err error
	if enabled {
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO activated_keys(key, created_at) VALUES (?, ?)`, key, ts(time.Now()))
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM activated_keys WHERE key = ?`, key)
	}
	if err != nil {
		return err
	}
	stageKey, _, _ := strings.Cut(key, "/")
	sectionID, stage, _ := domain.ParseStageKey(stageKey)
	return insertChangeEvent(ctx, tx, newEvent(ctx, domain.EntityActivation, key, domain.ChangeOperationActivate, sectionID, stage, map[string]string{
		"enabled": strconv.FormatBool(enabled),
	}))
}

// ListActivatedKeys lists activated keys.
func (r *Repository) ListActivatedKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM activated_keys ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// manualTaskColumns lists the manual_tasks columns in scan order.
const manualTaskColumns = `id, name, category, start_date, end_date, duration_days, budget_amount, completed,
			assignee, catalog_category_id, parent_id, sort_order, created_at, updated_at`

// getManualTask returns one manual task.
func getManualTask(ctx context.Context, q queryRower, id string) (domain.ManualTask, error) {
	row := q.QueryRowContext(ctx, `SELECT `+manualTaskColumns+` FROM manual_tasks WHERE id = ?`, id)
	return scanManualTask(row)
}

// changedManualFields lists the fields that differ between prev and next.
func changedManualFields(prev, next domain.ManualTask) []string {
	fields := make([]string, 0, 6)
	if prev.Name != next.Name {
		fields = append(fields, "name")
	}
	if !equalNullableTimes(prev.StartDate, next.StartDate) || !equalNullableTimes(prev.EndDate, next.EndDate) {
		fields = append(fields, "dates")
	}
	if prev.BudgetAmount != next.BudgetAmount {
		fields = append(fields, "budget_amount")
	}
	if prev.Completed != next.Completed {
		fields = append(fields, "completed")
	}
	if prev.Assignee != next.Assignee {
		fields = append(fields, "assignee")
	}
	if prev.Order != next.Order {
		fields = append(fields, "order")
	}
	return fields
}

// equalNullableTimes compares optional timestamps.
func equalNullableTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanSection handles scan section.
func scanSection(s scanner) (domain.Section, error) {
	var (
		sec        domain.Section
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&sec.ID, &sec.Name, &sec.Position, &sec.Active, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Section{}, app.ErrNotFound
		}
		return domain.Section{}, err
	}
	sec.CreatedAt = parseTS(createdRaw)
	sec.UpdatedAt = parseTS(updatedRaw)
	return sec, nil
}

// scanManualTask handles scan manual task.
func scanManualTask(s scanner) (domain.ManualTask, error) {
	var (
		t          domain.ManualTask
		start      sql.NullString
		end        sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&t.ID,
		&t.Name,
		&t.Category,
		&start,
		&end,
		&t.DurationDays,
		&t.BudgetAmount,
		&t.Completed,
		&t.Assignee,
		&t.CatalogCategoryID,
		&t.ParentID,
		&t.Order,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ManualTask{}, app.ErrNotFound
		}
		return domain.ManualTask{}, err
	}
	t.StartDate = parseNullTS(start)
	t.EndDate = parseNullTS(end)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// tsLayout keeps a fixed fraction width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
