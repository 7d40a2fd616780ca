// Package postgres persists applications in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"docdesk/internal/application/models"
	"docdesk/internal/platform/postgres"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
)

const table = "applications"

var columns = []string{
	"id", "document_id", "applicant_id", "reviewer_id",
	"name", "email", "phone", "address", "national_id", "tax_id", "gender", "birth_date", "license_id",
	"purpose", "attachment_ref", "status", "created_at", "updated_at",
}

// PostgresStore persists applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	query, args, err := postgres.Builder.Insert(table).
		Columns(columns...).
		Values(
			uuid.UUID(app.ID), uuid.UUID(app.DocumentID), uuid.UUID(app.ApplicantID), uuid.UUID(app.ReviewerID),
			app.Name, app.Email, app.Phone, app.Address, app.NationalID, app.TaxID, string(app.Gender),
			app.BirthDate.Time(), nullString(app.LicenseID),
			app.Purpose, app.AttachmentRef, string(app.Status), app.CreatedAt, app.UpdatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert application: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// Save writes the editable content and status only if the stored status is
// still expectedPrior. The binding columns are never updated.
func (s *PostgresStore) Save(ctx context.Context, app *models.Application, expectedPrior models.Status) error {
	query, args, err := postgres.Builder.Update(table).
		SetMap(map[string]any{
			"name":        app.Name,
			"email":       app.Email,
			"phone":       app.Phone,
			"address":     app.Address,
			"national_id": app.NationalID,
			"tax_id":      app.TaxID,
			"gender":      string(app.Gender),
			"birth_date":  app.BirthDate.Time(),
			"license_id":  nullString(app.LicenseID),
			"purpose":     app.Purpose,
			"status":      string(app.Status),
			"updated_at":  app.UpdatedAt,
		}).
		Where(sq.Eq{"id": uuid.UUID(app.ID), "status": string(expectedPrior)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update application: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: tell a vanished row apart from a lost race.
	var current string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM applications WHERE id = $1", uuid.UUID(app.ID)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read application status: %w", err)
	}
	return fmt.Errorf("application %s is %s: %w", app.ID, current, sentinel.ErrConflict)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ApplicationID) error {
	query, args, err := postgres.Builder.Delete(table).Where(sq.Eq{"id": uuid.UUID(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete application: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	query, args, err := postgres.Builder.Select(columns...).From(table).Where(sq.Eq{"id": uuid.UUID(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select application: %w", err)
	}
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// List returns matching applications ordered by created_at descending, then id.
func (s *PostgresStore) List(ctx context.Context, q models.Query) ([]*models.Application, error) {
	sb := postgres.Builder.Select(columns...).From(table)
	if !q.ApplicantID.IsNil() {
		sb = sb.Where(sq.Eq{"applicant_id": uuid.UUID(q.ApplicantID)})
	}
	if !q.ReviewerID.IsNil() {
		sb = sb.Where(sq.Eq{"reviewer_id": uuid.UUID(q.ReviewerID)})
	}
	if !q.DocumentID.IsNil() {
		sb = sb.Where(sq.Eq{"document_id": uuid.UUID(q.DocumentID)})
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		sb = sb.Where(sq.Expr("status = ANY(?)", pq.Array(statuses)))
	}
	query, args, err := sb.OrderBy("created_at DESC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list applications: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		id, documentID, applicant, reviewer uuid.UUID
		app                                 models.Application
		gender, status                      string
		birthDate                           time.Time
		licenseID                           sql.NullString
	)
	if err := row.Scan(
		&id, &documentID, &applicant, &reviewer,
		&app.Name, &app.Email, &app.Phone, &app.Address, &app.NationalID, &app.TaxID, &gender, &birthDate, &licenseID,
		&app.Purpose, &app.AttachmentRef, &status, &app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	app.ID = domain.ApplicationID(id)
	app.DocumentID = domain.DocumentID(documentID)
	app.ApplicantID = domain.UserID(applicant)
	app.ReviewerID = domain.UserID(reviewer)
	app.Gender = models.Gender(gender)
	app.BirthDate = validity.NewDate(birthDate)
	app.LicenseID = licenseID.String
	app.Status = models.Status(status)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	return &app, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
