package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/openfactory/designcore/internal/materialize"
	"github.com/openfactory/designcore/internal/types"
)

// ListProjects returns the project header rows owned by a user, newest
// update first.
func (p *PostgresClient) ListProjects(ctx context.Context, ownerID string) ([]materialize.ProjectRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, name, COALESCE(description, ''), version, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]materialize.ProjectRow, 0)
	for rows.Next() {
		var row materialize.ProjectRow
		err := rows.Scan(&row.ID, &row.UserID, &row.Name, &row.Description,
			&row.Version, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, row)
	}

	return projects, rows.Err()
}

// GetProjectDetail loads a project together with all of its normalized child
// rows. Returns (nil, nil) when the project does not exist.
func (p *PostgresClient) GetProjectDetail(ctx context.Context, projectID string) (*materialize.ProjectDetail, error) {
	detail := &materialize.ProjectDetail{}

	err := p.pool.QueryRow(ctx, `
		SELECT id, user_id, name, COALESCE(description, ''), version, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(
		&detail.Project.ID,
		&detail.Project.UserID,
		&detail.Project.Name,
		&detail.Project.Description,
		&detail.Project.Version,
		&detail.Project.CreatedAt,
		&detail.Project.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	if err := p.loadIORows(ctx, projectID, detail); err != nil {
		return nil, err
	}
	if err := p.loadAxisRows(ctx, projectID, detail); err != nil {
		return nil, err
	}
	if err := p.loadStationRows(ctx, projectID, detail); err != nil {
		return nil, err
	}
	if err := p.loadTaskRows(ctx, projectID, detail); err != nil {
		return nil, err
	}

	return detail, nil
}

func (p *PostgresClient) loadIORows(ctx context.Context, projectID string, detail *materialize.ProjectDetail) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, project_id, name, type, address, COALESCE(description, ''), enabled
		FROM io_configs
		WHERE project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query io_configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row materialize.IORow
		err := rows.Scan(&row.ID, &row.ProjectID, &row.Name, &row.Type,
			&row.Address, &row.Description, &row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to scan io_config: %w", err)
		}
		detail.IORows = append(detail.IORows, row)
	}
	return rows.Err()
}

func (p *PostgresClient) loadAxisRows(ctx context.Context, projectID string, detail *materialize.ProjectDetail) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, project_id, name, type, max_speed, acceleration, deceleration,
		       home_position, soft_limit_min, soft_limit_max, enabled
		FROM axis_configs
		WHERE project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query axis_configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row materialize.AxisRow
		err := rows.Scan(&row.ID, &row.ProjectID, &row.Name, &row.Type,
			&row.MaxSpeed, &row.Acceleration, &row.Deceleration,
			&row.HomePosition, &row.SoftLimitMin, &row.SoftLimitMax, &row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to scan axis_config: %w", err)
		}
		detail.AxisRows = append(detail.AxisRows, row)
	}
	return rows.Err()
}

func (p *PostgresClient) loadStationRows(ctx context.Context, projectID string, detail *materialize.ProjectDetail) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, project_id, name, position_x, position_y, COALESCE(description, ''), enabled
		FROM station_configs
		WHERE project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query station_configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row materialize.StationRow
		err := rows.Scan(&row.ID, &row.ProjectID, &row.Name,
			&row.PositionX, &row.PositionY, &row.Description, &row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to scan station_config: %w", err)
		}
		detail.StationRows = append(detail.StationRows, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	joinIO, err := p.pool.Query(ctx, `
		SELECT sio.station_id, sio.io_config_id
		FROM station_io_configs sio
		JOIN station_configs sc ON sc.id = sio.station_id
		WHERE sc.project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query station_io_configs: %w", err)
	}
	defer joinIO.Close()

	for joinIO.Next() {
		var row materialize.StationIORow
		if err := joinIO.Scan(&row.StationID, &row.IOConfigID); err != nil {
			return fmt.Errorf("failed to scan station_io_config: %w", err)
		}
		detail.StationIORows = append(detail.StationIORows, row)
	}
	if err := joinIO.Err(); err != nil {
		return err
	}

	joinAxis, err := p.pool.Query(ctx, `
		SELECT sax.station_id, sax.axis_config_id
		FROM station_axis_configs sax
		JOIN station_configs sc ON sc.id = sax.station_id
		WHERE sc.project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query station_axis_configs: %w", err)
	}
	defer joinAxis.Close()

	for joinAxis.Next() {
		var row materialize.StationAxisRow
		if err := joinAxis.Scan(&row.StationID, &row.AxisConfigID); err != nil {
			return fmt.Errorf("failed to scan station_axis_config: %w", err)
		}
		detail.StationAxisRows = append(detail.StationAxisRows, row)
	}
	return joinAxis.Err()
}

func (p *PostgresClient) loadTaskRows(ctx context.Context, projectID string, detail *materialize.ProjectDetail) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, project_id, COALESCE(station_id, ''), name, priority, enabled
		FROM task_configs
		WHERE project_id = $1
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query task_configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row materialize.TaskRow
		err := rows.Scan(&row.ID, &row.ProjectID, &row.StationID,
			&row.Name, &row.Priority, &row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to scan task_config: %w", err)
		}
		detail.TaskRows = append(detail.TaskRows, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	steps, err := p.pool.Query(ctx, `
		SELECT ts.id, ts.task_id, ts.sequence_order, ts.type, ts.parameters, COALESCE(ts.description, '')
		FROM task_steps ts
		JOIN task_configs tc ON tc.id = ts.task_id
		WHERE tc.project_id = $1
		ORDER BY ts.sequence_order
	`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query task_steps: %w", err)
	}
	defer steps.Close()

	for steps.Next() {
		var row materialize.StepRow
		var paramsJSON []byte
		err := steps.Scan(&row.ID, &row.TaskID, &row.SequenceOrder,
			&row.Type, &paramsJSON, &row.Description)
		if err != nil {
			return fmt.Errorf("failed to scan task_step: %w", err)
		}
		if err := json.Unmarshal(paramsJSON, &row.Parameters); err != nil {
			return fmt.Errorf("failed to unmarshal step parameters: %w", err)
		}
		detail.StepRows = append(detail.StepRows, row)
	}
	return steps.Err()
}

// SaveProjectTransaction writes a full project detail atomically: the project
// header is upserted and every child row set is replaced in one transaction,
// so a failure can never leave orphaned relational rows behind.
func (p *PostgresClient) SaveProjectTransaction(ctx context.Context, detail *materialize.ProjectDetail) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO projects (id, user_id, name, description, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			updated_at = NOW()
		WHERE projects.user_id = EXCLUDED.user_id
	`, detail.Project.ID, detail.Project.UserID, detail.Project.Name,
		detail.Project.Description, detail.Project.Version, detail.Project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	// The conflict guard matches nothing when the row belongs to another user.
	// Abort before touching child rows instead of replacing their content.
	if tag.RowsAffected() != 1 {
		return types.NewValidationError("", "project is owned by another user")
	}

	// Child rows are replaced wholesale; join rows and steps cascade from
	// their parents.
	for _, table := range []string{"task_configs", "station_configs", "axis_configs", "io_configs"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, table), detail.Project.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, row := range detail.IORows {
		_, err := tx.Exec(ctx, `
			INSERT INTO io_configs (id, project_id, name, type, address, description, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, row.ID, row.ProjectID, row.Name, row.Type, row.Address, row.Description, row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert io_config: %w", err)
		}
	}

	for _, row := range detail.AxisRows {
		_, err := tx.Exec(ctx, `
			INSERT INTO axis_configs (id, project_id, name, type, max_speed, acceleration,
				deceleration, home_position, soft_limit_min, soft_limit_max, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, row.ID, row.ProjectID, row.Name, row.Type, row.MaxSpeed, row.Acceleration,
			row.Deceleration, row.HomePosition, row.SoftLimitMin, row.SoftLimitMax, row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert axis_config: %w", err)
		}
	}

	for _, row := range detail.StationRows {
		_, err := tx.Exec(ctx, `
			INSERT INTO station_configs (id, project_id, name, position_x, position_y, description, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, row.ID, row.ProjectID, row.Name, row.PositionX, row.PositionY, row.Description, row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert station_config: %w", err)
		}
	}

	for _, row := range detail.StationIORows {
		_, err := tx.Exec(ctx, `
			INSERT INTO station_io_configs (station_id, io_config_id)
			VALUES ($1, $2)
		`, row.StationID, row.IOConfigID)
		if err != nil {
			return fmt.Errorf("failed to insert station_io_config: %w", err)
		}
	}

	for _, row := range detail.StationAxisRows {
		_, err := tx.Exec(ctx, `
			INSERT INTO station_axis_configs (station_id, axis_config_id)
			VALUES ($1, $2)
		`, row.StationID, row.AxisConfigID)
		if err != nil {
			return fmt.Errorf("failed to insert station_axis_config: %w", err)
		}
	}

	for _, row := range detail.TaskRows {
		var stationID any
		if row.StationID != "" {
			stationID = row.StationID
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO task_configs (id, project_id, station_id, name, priority, enabled)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row.ID, row.ProjectID, stationID, row.Name, row.Priority, row.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert task_config: %w", err)
		}
	}

	for _, row := range detail.StepRows {
		paramsJSON, err := json.Marshal(row.Parameters)
		if err != nil {
			return fmt.Errorf("failed to marshal step parameters: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO task_steps (id, task_id, sequence_order, type, parameters, description)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row.ID, row.TaskID, row.SequenceOrder, row.Type, paramsJSON, row.Description)
		if err != nil {
			return fmt.Errorf("failed to insert task_step: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetProjectOwner returns the owning user id of a project, or "" when the
// project does not exist.
func (p *PostgresClient) GetProjectOwner(ctx context.Context, projectID string) (string, error) {
	var ownerID string
	err := p.pool.QueryRow(ctx, `
		SELECT user_id FROM projects WHERE id = $1
	`, projectID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to load project owner: %w", err)
	}
	return ownerID, nil
}

// DeleteProject removes a project scoped by both id and owner. Dependent rows
// go with it through ON DELETE CASCADE. Returns false when nothing matched.
func (p *PostgresClient) DeleteProject(ctx context.Context, projectID, ownerID string) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
