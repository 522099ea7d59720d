package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

const projectColumns = `id, name, tracker_project_id, tracker_token, utc_offset,
	campfire_subdomain, campfire_token, campfire_room_id, created_at, updated_at`

// ProjectRepo is the SQLite implementation of the ProjectStore port interface.
// Tracker and Campfire tokens are sealed with AES-256-GCM when a key is set.
type ProjectRepo struct {
	db     *DB
	secret sealer
	now    func() time.Time
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB. key must be
// 32 bytes for AES-256-GCM, or nil to store tokens unencrypted.
func NewProjectRepo(db *DB, key []byte) *ProjectRepo {
	return &ProjectRepo{db: db, secret: sealer{key: key}, now: time.Now}
}

// Create inserts a new project and returns it with its assigned ID.
func (r *ProjectRepo) Create(ctx context.Context, project model.Project) (model.Project, error) {
	const query = `
		INSERT INTO projects (
			name, tracker_project_id, tracker_token, utc_offset,
			campfire_subdomain, campfire_token, campfire_room_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	trackerToken, campfireToken, err := r.sealTokens(project)
	if err != nil {
		return model.Project{}, fmt.Errorf("create project %q: %w", project.Name, err)
	}

	now := r.now().UTC()
	result, err := r.db.writer(ctx).ExecContext(ctx, query,
		project.Name, project.Tracker.ProjectID, trackerToken, project.UTCOffset,
		project.Chat.Subdomain, campfireToken, project.Chat.RoomID,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("create project %q: %w", project.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Project{}, fmt.Errorf("read project id: %w", err)
	}

	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return project, nil
}

// Update replaces the operator-editable fields of a project. The cached UTC
// offset is left alone; it belongs to the importer.
func (r *ProjectRepo) Update(ctx context.Context, project model.Project) error {
	const query = `
		UPDATE projects SET
			name = ?, tracker_project_id = ?, tracker_token = ?,
			campfire_subdomain = ?, campfire_token = ?, campfire_room_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	trackerToken, campfireToken, err := r.sealTokens(project)
	if err != nil {
		return fmt.Errorf("update project %d: %w", project.ID, err)
	}

	result, err := r.db.writer(ctx).ExecContext(ctx, query,
		project.Name, project.Tracker.ProjectID, trackerToken,
		project.Chat.Subdomain, campfireToken, project.Chat.RoomID,
		formatTime(r.now()), project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project %d: %w", project.ID, err)
	}

	return requireAffected(result, fmt.Sprintf("update project %d", project.ID))
}

// Delete removes a project. Due to foreign key cascade, its iterations and
// their metrics are deleted too.
func (r *ProjectRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM projects WHERE id = ?`

	result, err := r.db.writer(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}

	return requireAffected(result, fmt.Sprintf("delete project %d", id))
}

// Get retrieves a project by ID. Returns nil, nil if the project does not exist.
func (r *ProjectRepo) Get(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	project, err := r.scanProject(r.db.reader(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}

	return project, nil
}

// List returns all projects ordered by name, then ID.
func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name, id`

	rows, err := r.db.reader(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		project, err := r.scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// ListRefs returns the ID and name of every project in List order. Tokens are
// not read.
func (r *ProjectRepo) ListRefs(ctx context.Context) ([]model.ProjectRef, error) {
	const query = `SELECT id, name FROM projects ORDER BY name, id`

	rows, err := r.db.reader(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list project refs: %w", err)
	}
	defer rows.Close()

	var refs []model.ProjectRef
	for rows.Next() {
		var ref model.ProjectRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan project ref: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project refs: %w", err)
	}

	return refs, nil
}

// UpdateUTCOffset stores the offset reported by the latest import.
func (r *ProjectRepo) UpdateUTCOffset(ctx context.Context, id int64, offsetSeconds int) error {
	const query = `UPDATE projects SET utc_offset = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.writer(ctx).ExecContext(ctx, query, offsetSeconds, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("update utc offset for project %d: %w", id, err)
	}

	return requireAffected(result, fmt.Sprintf("update utc offset for project %d", id))
}

func (r *ProjectRepo) sealTokens(project model.Project) (tracker, campfire string, err error) {
	tracker, err = r.secret.seal(project.Tracker.Token)
	if err != nil {
		return "", "", fmt.Errorf("seal tracker token: %w", err)
	}
	campfire, err = r.secret.seal(project.Chat.Token)
	if err != nil {
		return "", "", fmt.Errorf("seal campfire token: %w", err)
	}
	return tracker, campfire, nil
}

func (r *ProjectRepo) scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var trackerToken, campfireToken string
	var createdAt, updatedAt string

	err := s.Scan(
		&p.ID, &p.Name, &p.Tracker.ProjectID, &trackerToken, &p.UTCOffset,
		&p.Chat.Subdomain, &campfireToken, &p.Chat.RoomID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Tracker.Token, err = r.secret.open(trackerToken); err != nil {
		return nil, fmt.Errorf("open tracker token for project %d: %w", p.ID, err)
	}
	if p.Chat.Token, err = r.secret.open(campfireToken); err != nil {
		return nil, fmt.Errorf("open campfire token for project %d: %w", p.ID, err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &p, nil
}

// requireAffected maps a zero-row update or delete to ErrProjectNotFound.
func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrProjectNotFound)
	}

	return nil
}
