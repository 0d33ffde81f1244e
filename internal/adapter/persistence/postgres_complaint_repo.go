package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

const complaintColumns = `id, owner_id, title, description, image_ref, status, response, created_at, updated_at`

// PostgresComplaintRepository implements ports.ComplaintRepository using PostgreSQL
type PostgresComplaintRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresComplaintRepository creates a new PostgreSQL complaint repository
func NewPostgresComplaintRepository(db *sql.DB) *PostgresComplaintRepository {
	return &PostgresComplaintRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*domain.Complaint, error) {
	var c domain.Complaint
	var imageRef, response sql.NullString
	var status string

	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Description,
		&imageRef,
		&status,
		&response,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.Status = domain.ComplaintStatus(status)
	if imageRef.Valid {
		c.ImageRef = &imageRef.String
	}
	if response.Valid {
		c.Response = &response.String
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// Create saves a new complaint
func (r *PostgresComplaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if err := domain.ValidateContent(complaint.Title, complaint.Description); err != nil {
		return err
	}

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		complaint.ID,
		complaint.OwnerID,
		complaint.Title,
		complaint.Description,
		complaint.ImageRef,
		string(complaint.Status),
		complaint.Response,
		complaint.CreatedAt,
		complaint.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
			return domain.NewValidationError(fmt.Sprintf("complaint rejected by store: %s", pqErr.Message))
		}
		return fmt.Errorf("failed to create complaint: %w", err)
	}

	return nil
}

// FindByID retrieves a complaint by its ID
func (r *PostgresComplaintRepository) FindByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrComplaintNotFound
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`

	complaint, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrComplaintNotFound
		}
		return nil, fmt.Errorf("failed to find complaint: %w", err)
	}
	return complaint, nil
}

func whereClause(filter domain.ComplaintFilter, withStatus bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if withStatus && filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List retrieves complaints newest first
func (r *PostgresComplaintRepository) List(ctx context.Context, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	where, args := whereClause(filter, true)
	query := `SELECT ` + complaintColumns + ` FROM complaints` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	var complaints []*domain.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, complaint)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaints: %w", err)
	}

	return complaints, nil
}

// ApplyMutation locks the row, applies m and writes it back in one transaction
func (r *PostgresComplaintRepository) ApplyMutation(ctx context.Context, id string, m domain.Mutation) (*domain.Complaint, *domain.Complaint, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, domain.ErrComplaintNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1 FOR UPDATE`
	before, err := scanComplaint(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrComplaintNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock complaint: %w", err)
	}

	after := before.Apply(m, r.now())

	_, err = tx.ExecContext(ctx, `
		UPDATE complaints
		SET status = $2, response = $3, updated_at = $4
		WHERE id = $1
	`, before.ID, string(after.Status), after.Response, after.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update complaint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit complaint update: %w", err)
	}

	return before, after, nil
}

// CountByStatus returns per-status totals, ignoring the filter's status
func (r *PostgresComplaintRepository) CountByStatus(ctx context.Context, filter domain.ComplaintFilter) (domain.StatusCounts, error) {
	where, args := whereClause(filter, false)
	query := `SELECT status, COUNT(*) FROM complaints` + where + ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("failed to count complaints: %w", err)
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.StatusCounts{}, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts.Add(domain.ComplaintStatus(status), n)
	}

	if err := rows.Err(); err != nil {
		return domain.StatusCounts{}, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
