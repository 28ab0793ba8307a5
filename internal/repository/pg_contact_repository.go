package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/folio/backend/internal/model"
)

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
type PgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

// Ensure PgContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*PgContactRepository)(nil)

const pgUniqueViolation = "23505"

const contactSelectCols = `id, name, email, subject, message, status, priority, tags, source,
	COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	replied_at, COALESCE(replied_by, ''), COALESCE(response_message, ''),
	metadata, classifier_version, created_at, updated_at`

func scanContact(scan func(...any) error) (*model.Contact, error) {
	c := &model.Contact{}
	var (
		repliedAt       *time.Time
		repliedBy       string
		responseMessage string
	)
	err := scan(
		&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message,
		&c.Status, &c.Priority, &c.Tags, &c.Source,
		&c.IPAddress, &c.UserAgent,
		&repliedAt, &repliedBy, &responseMessage,
		&c.Metadata, &c.ClassifierVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if repliedAt != nil {
		c.Response = &model.ContactResponse{
			RepliedAt:       repliedAt.UTC(),
			RepliedBy:       repliedBy,
			ResponseMessage: responseMessage,
		}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

// Create inserts a new contacts row and populates c.ID, status and timestamps
// from the RETURNING clause. The same email, subject and message on the same
// UTC day violates contacts_dedupe_idx and yields ErrDuplicate.
func (r *PgContactRepository) Create(ctx context.Context, c *model.Contact) error {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO contacts
		 (name, email, subject, message, priority, tags, source, ip_address, user_agent,
		  metadata, classifier_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
		 RETURNING id, status, created_at, updated_at`,
		c.Name, c.Email, c.Subject, c.Message, c.Priority, c.Tags, c.Source,
		c.IPAddress, c.UserAgent, c.Metadata, c.ClassifierVersion,
	).Scan(&c.ID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PgContactRepository) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+contactSelectCols+` FROM contacts WHERE id = $1`, id)
	return scanContact(row.Scan)
}

// UpdateStatus sets the status in one statement. SET expressions see the old
// row, so replied_at is only written when it was NULL.
func (r *PgContactRepository) UpdateStatus(ctx context.Context, id string, status model.ContactStatus, reply *model.ReplyInput) (*model.Contact, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var repliedBy, responseMessage string
	if reply != nil {
		repliedBy, responseMessage = reply.RepliedBy, reply.ResponseMessage
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE contacts SET
		   status = $2::text,
		   updated_at = NOW(),
		   replied_at = CASE WHEN $2::text = 'replied' AND replied_at IS NULL THEN NOW() ELSE replied_at END,
		   replied_by = CASE WHEN $2::text = 'replied' AND replied_at IS NULL THEN NULLIF($3, '') ELSE replied_by END,
		   response_message = CASE WHEN $2::text = 'replied' AND replied_at IS NULL THEN NULLIF($4, '') ELSE response_message END
		 WHERE id = $1
		 RETURNING `+contactSelectCols,
		id, string(status), repliedBy, responseMessage)
	return scanContact(row.Scan)
}

func (r *PgContactRepository) Delete(ctx context.Context, id string) error {
	id, err := ParseID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns the requested page and the total number of matching rows.
func (r *PgContactRepository) Query(ctx context.Context, q model.ContactQuery) ([]*model.Contact, int, error) {
	q = q.Normalize()

	total, err := r.Count(ctx, q.Filter)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildContactWhere(q.Filter)
	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	args = append(args, q.PageSize, q.Offset())

	query := fmt.Sprintf(`SELECT %s FROM contacts %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		contactSelectCols, where, orderClause(q.SortBy, q.SortDesc), limitArg, offsetArg)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

func (r *PgContactRepository) Count(ctx context.Context, f model.ContactFilter) (int, error) {
	where, args := buildContactWhere(f)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts `+where, args...).Scan(&n)
	return n, err
}

// Aggregate runs each facet as an independent query in parallel. Facets may
// observe slightly different snapshots; each is internally consistent.
func (r *PgContactRepository) Aggregate(ctx context.Context, now time.Time) (*model.ContactStats, error) {
	stats := model.NewContactStats(now)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := r.countBy(ctx, "status")
		for k, v := range counts {
			stats.ByStatus[model.ContactStatus(k)] = v
		}
		return err
	})
	g.Go(func() error {
		counts, err := r.countBy(ctx, "priority")
		for k, v := range counts {
			stats.ByPriority[model.Priority(k)] = v
		}
		return err
	})
	g.Go(func() error {
		counts, err := r.countBy(ctx, "source")
		for k, v := range counts {
			stats.BySource[model.Source(k)] = v
		}
		return err
	})
	g.Go(func() error {
		daily, err := r.dailyCounts(ctx, model.StatsWindowStart(now))
		if err == nil {
			stats.Daily = daily
		}
		return err
	})
	g.Go(func() error {
		tags, err := r.topTags(ctx, model.TopTagsLimit)
		if err == nil {
			stats.TopTags = tags
		}
		return err
	})
	g.Go(func() error {
		rt, err := r.responseTimes(ctx)
		if err == nil {
			stats.ResponseTime = rt
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	return stats, nil
}

func (r *PgContactRepository) DeleteArchivedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM contacts WHERE status = 'archived' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgContactRepository) ListStale(ctx context.Context, version, limit int) ([]*model.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactSelectCols+` FROM contacts
		 WHERE classifier_version <> $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`, version, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *PgContactRepository) UpdateClassification(ctx context.Context, id string, tags []string, priority model.Priority, version int) error {
	id, err := ParseID(id)
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET tags = $2, priority = $3, classifier_version = $4, updated_at = NOW()
		 WHERE id = $1`, id, tags, priority, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// countBy groups on one of the enum columns. column is never user input.
func (r *PgContactRepository) countBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+column+`, COUNT(*) FROM contacts GROUP BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (r *PgContactRepository) dailyCounts(ctx context.Context, since time.Time) ([]model.DailyCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT to_char((created_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM contacts
		 WHERE created_at >= $1
		 GROUP BY day
		 ORDER BY day DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	daily := []model.DailyCount{}
	for rows.Next() {
		var d model.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		daily = append(daily, d)
	}
	return daily, rows.Err()
}

func (r *PgContactRepository) topTags(ctx context.Context, limit int) ([]model.TagCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tag, COUNT(*) AS n
		 FROM contacts, unnest(tags) AS tag
		 GROUP BY tag
		 ORDER BY n DESC, tag ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []model.TagCount{}
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

func (r *PgContactRepository) responseTimes(ctx context.Context) (model.ResponseTimeStats, error) {
	var rt model.ResponseTimeStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(EXTRACT(EPOCH FROM (replied_at - created_at)) / 3600), 0)::float8,
		        COALESCE(MIN(EXTRACT(EPOCH FROM (replied_at - created_at)) / 3600), 0)::float8,
		        COALESCE(MAX(EXTRACT(EPOCH FROM (replied_at - created_at)) / 3600), 0)::float8
		 FROM contacts
		 WHERE status = 'replied' AND replied_at IS NOT NULL`,
	).Scan(&rt.Count, &rt.AverageHours, &rt.MinHours, &rt.MaxHours)
	if err != nil {
		return rt, err
	}
	rt.AverageHours = roundHours(rt.AverageHours)
	rt.MinHours = roundHours(rt.MinHours)
	rt.MaxHours = roundHours(rt.MaxHours)
	return rt, nil
}

// buildContactWhere renders filter conditions with positional arguments.
func buildContactWhere(f model.ContactFilter) (string, []any) {
	var conditions []string
	var args []any

	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, string(f.Source))
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			`(name ILIKE $%[1]d OR email ILIKE $%[1]d OR subject ILIKE $%[1]d OR message ILIKE $%[1]d
			  OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE $%[1]d))`, n))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var sortColumns = map[model.SortField]string{
	model.SortCreatedAt: "created_at",
	model.SortUpdatedAt: "updated_at",
	model.SortName:      "lower(name)",
	model.SortEmail:     "email",
	model.SortSubject:   "lower(subject)",
	model.SortStatus:    "status",
	model.SortPriority:  "CASE priority WHEN 'low' THEN 0 WHEN 'normal' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 ELSE -1 END",
	model.SortSource:    "source",
}

func orderClause(field model.SortField, desc bool) string {
	col, ok := sortColumns[field]
	if !ok {
		col = sortColumns[model.SortCreatedAt]
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, created_at %s, id %s", col, dir, dir, dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
