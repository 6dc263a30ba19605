package repository

import (
	"database/sql"

	"github.com/google/uuid"

	"ingest-control-plane/internal/models"
)

type SourceRepository interface {
	Create(name, kind string, config models.JSONMap) (models.Source, error)
	Get(id string) (models.Source, error)
	List() ([]models.Source, error)
	UpdateStatus(id, status string) (models.Source, error)
}

type sourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) SourceRepository {
	return &sourceRepository{db: db}
}

const sourceColumns = "id, name, kind, config, status, created_at"

func (r *sourceRepository) Create(name, kind string, config models.JSONMap) (models.Source, error) {
	query := `
		INSERT INTO sources (id, name, kind, config, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sourceColumns
	row := r.db.QueryRow(query, uuid.NewString(), name, kind, config, models.SourceStatusActive)
	return scanSource(row)
}

func (r *sourceRepository) Get(id string) (models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	src, err := scanSource(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return src, ErrNotFound
	}
	return src, err
}

func (r *sourceRepository) List() ([]models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.Kind, &src.Config, &src.Status, &src.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (r *sourceRepository) UpdateStatus(id, status string) (models.Source, error) {
	query := `
		UPDATE sources
		SET status = $1
		WHERE id = $2
		RETURNING ` + sourceColumns
	src, err := scanSource(r.db.QueryRow(query, status, id))
	if err == sql.ErrNoRows {
		return src, ErrNotFound
	}
	return src, err
}

func scanSource(row *sql.Row) (models.Source, error) {
	var src models.Source
	err := row.Scan(&src.ID, &src.Name, &src.Kind, &src.Config, &src.Status, &src.CreatedAt)
	return src, err
}
