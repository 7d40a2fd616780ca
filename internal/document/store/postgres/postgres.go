// Package postgres persists documents in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"docdesk/internal/document/models"
	"docdesk/internal/platform/postgres"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
)

const table = "documents"

var columns = []string{
	"id", "owner_id", "title", "description", "category", "issuer", "country", "city",
	"validity_kind", "duration_label", "valid_from", "valid_to", "marked_expired",
	"posted_on", "updated_at",
}

// PostgresStore persists documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	kind, label, from, to := validityColumns(doc.Validity)
	query, args, err := postgres.Builder.Insert(table).
		Columns(columns...).
		Values(
			uuid.UUID(doc.ID), uuid.UUID(doc.OwnerID), doc.Title, doc.Description, doc.Category, doc.Issuer,
			doc.Location.Country, doc.Location.City, kind, label, from, to, doc.MarkedExpired,
			doc.PostedOn, doc.UpdatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	kind, label, from, to := validityColumns(doc.Validity)
	query, args, err := postgres.Builder.Update(table).
		SetMap(map[string]any{
			"title":          doc.Title,
			"description":    doc.Description,
			"category":       doc.Category,
			"issuer":         doc.Issuer,
			"country":        doc.Location.Country,
			"city":           doc.Location.City,
			"validity_kind":  kind,
			"duration_label": label,
			"valid_from":     from,
			"valid_to":       to,
			"marked_expired": doc.MarkedExpired,
			"updated_at":     doc.UpdatedAt,
		}).
		Where(sq.Eq{"id": uuid.UUID(doc.ID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update document: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res, doc.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.DocumentID) error {
	query, args, err := postgres.Builder.Delete(table).Where(sq.Eq{"id": uuid.UUID(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete document: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, id)
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	query, args, err := postgres.Builder.Select(columns...).From(table).Where(sq.Eq{"id": uuid.UUID(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select document: %w", err)
	}
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// List returns matching documents ordered by posted_on descending, then id.
func (s *PostgresStore) List(ctx context.Context, q models.Query) ([]*models.Document, error) {
	sb := postgres.Builder.Select(columns...).From(table)
	if q.Category != "" {
		sb = sb.Where(sq.Eq{"category": q.Category})
	}
	if q.Country != "" {
		sb = sb.Where(sq.Eq{"country": q.Country})
	}
	if q.City != "" {
		sb = sb.Where(sq.Eq{"city": q.City})
	}
	if !q.OwnerID.IsNil() {
		sb = sb.Where(sq.Eq{"owner_id": uuid.UUID(q.OwnerID)})
	}
	if q.ActiveOn != nil {
		day := q.ActiveOn.String()
		sb = sb.Where(sq.Eq{"marked_expired": false}).Where(sq.Or{
			sq.Eq{"validity_kind": string(validity.KindFixed)},
			sq.And{
				sq.Expr("valid_from <= ?::date", day),
				sq.Expr("valid_to >= ?::date", day),
			},
		})
	}
	query, args, err := sb.OrderBy("posted_on DESC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		id, owner uuid.UUID
		doc       models.Document
		kind      string
		label     sql.NullString
		from, to  sql.NullTime
		postedOn  time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&id, &owner, &doc.Title, &doc.Description, &doc.Category, &doc.Issuer,
		&doc.Location.Country, &doc.Location.City, &kind, &label, &from, &to, &doc.MarkedExpired,
		&postedOn, &updatedAt,
	); err != nil {
		return nil, err
	}
	doc.ID = domain.DocumentID(id)
	doc.OwnerID = domain.UserID(owner)
	doc.PostedOn = postedOn.UTC()
	doc.UpdatedAt = updatedAt.UTC()
	switch validity.Kind(kind) {
	case validity.KindFixed:
		doc.Validity = validity.NewFixed(label.String)
	case validity.KindRanged:
		doc.Validity = validity.NewRanged(validity.NewDate(from.Time), validity.NewDate(to.Time))
	default:
		return nil, fmt.Errorf("unknown validity kind %q", kind)
	}
	return &doc, nil
}

func validityColumns(spec validity.Spec) (kind string, label sql.NullString, from, to sql.NullTime) {
	switch spec.Kind() {
	case validity.KindFixed:
		return string(validity.KindFixed), sql.NullString{String: spec.Fixed.DurationLabel, Valid: true}, sql.NullTime{}, sql.NullTime{}
	case validity.KindRanged:
		return string(validity.KindRanged), sql.NullString{},
			sql.NullTime{Time: spec.Ranged.From.Time(), Valid: true},
			sql.NullTime{Time: spec.Ranged.To.Time(), Valid: true}
	}
	return "", sql.NullString{}, sql.NullTime{}, sql.NullTime{}
}

func requireAffected(res sql.Result, id domain.DocumentID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
