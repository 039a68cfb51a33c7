package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/princekumarofficial/catalog-service/internal/config"
	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS owners (
			id TEXT PRIMARY KEY,
			username VARCHAR(255) UNIQUE NOT NULL,
			fullname VARCHAR(255) NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			watch_history TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			video_external_id TEXT NOT NULL,
			video_url TEXT NOT NULL,
			thumbnail_external_id TEXT NOT NULL,
			thumbnail_url TEXT NOT NULL,
			title VARCHAR(100) NOT NULL,
			description VARCHAR(1000) NOT NULL,
			duration DOUBLE PRECISION NOT NULL CHECK (duration > 0),
			views BIGINT NOT NULL DEFAULT 0 CHECK (views >= 0),
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS assets_text_idx ON assets
			USING GIN (to_tsvector('english', title || ' ' || description));`,
		`CREATE INDEX IF NOT EXISTS assets_published_created_idx ON assets (published, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS assets_owner_idx ON assets (owner_id, created_at DESC);`,
		`
		CREATE TABLE IF NOT EXISTS engagement (
			id TEXT PRIMARY KEY,
			asset_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			kind VARCHAR(20) NOT NULL CHECK (kind IN ('like', 'comment')),
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS engagement_asset_kind_idx ON engagement (asset_id, kind);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

var _ storage.Storage = (*Postgres)(nil)

const assetColumns = `
	a.id, a.owner_id, a.video_external_id, a.video_url, a.thumbnail_external_id, a.thumbnail_url,
	a.title, a.description, a.duration, a.views, a.published, a.created_at, a.updated_at`

const ownerColumns = `o.id, o.username, o.fullname, o.avatar`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner, extra ...any) (*assets.Asset, error) {
	var a assets.Asset
	dest := []any{
		&a.ID, &a.OwnerID, &a.VideoFile.ExternalID, &a.VideoFile.URL, &a.Thumbnail.ExternalID, &a.Thumbnail.URL,
		&a.Title, &a.Description, &a.Duration, &a.Views, &a.IsPublished, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

// ownerCols receives the LEFT JOINed owner columns, which are NULL when the
// owner row is gone.
type ownerCols struct {
	id, username, fullname, avatar sql.NullString
}

func (o *ownerCols) dest() []any {
	return []any{&o.id, &o.username, &o.fullname, &o.avatar}
}

func (o *ownerCols) summary() *users.OwnerSummary {
	if !o.id.Valid {
		return nil
	}
	return &users.OwnerSummary{ID: o.id.String, Username: o.username.String, FullName: o.fullname.String, Avatar: o.avatar.String}
}

func (p *Postgres) CreateAsset(ctx context.Context, a *assets.Asset) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
	INSERT INTO assets (id, owner_id, video_external_id, video_url, thumbnail_external_id, thumbnail_url,
		title, description, duration, views, published, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := p.Db.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.VideoFile.ExternalID, a.VideoFile.URL, a.Thumbnail.ExternalID, a.Thumbnail.URL,
		a.Title, a.Description, a.Duration, a.Views, a.IsPublished, a.CreatedAt, a.UpdatedAt)
	return err
}

func (p *Postgres) GetAsset(ctx context.Context, id string) (*assets.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets a WHERE a.id = $1`
	a, err := scanAsset(p.Db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return a, err
}

func (p *Postgres) GetAssetWithOwner(ctx context.Context, id string) (*assets.Asset, error) {
	query := `SELECT ` + assetColumns + `, ` + ownerColumns + `
	FROM assets a
	LEFT JOIN owners o ON o.id = a.owner_id
	WHERE a.id = $1`

	var oc ownerCols
	a, err := scanAsset(p.Db.QueryRowContext(ctx, query, id), oc.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Owner = oc.summary()
	return a, nil
}

func (p *Postgres) UpdateAsset(ctx context.Context, id string, c storage.AssetChanges) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if c.Title != nil {
		add("title", *c.Title)
	}
	if c.Description != nil {
		add("description", *c.Description)
	}
	if c.VideoFile != nil {
		add("video_external_id", c.VideoFile.ExternalID)
		add("video_url", c.VideoFile.URL)
	}
	if c.Thumbnail != nil {
		add("thumbnail_external_id", c.Thumbnail.ExternalID)
		add("thumbnail_url", c.Thumbnail.URL)
	}
	if c.Duration != nil {
		add("duration", *c.Duration)
	}
	if c.IsPublished != nil {
		add("published", *c.IsPublished)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE assets SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := p.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAsset(ctx context.Context, id string) error {
	res, err := p.Db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

var sortColumns = map[assets.SortField]string{
	assets.SortCreatedAt: "a.created_at",
	assets.SortViews:     "a.views",
	assets.SortDuration:  "a.duration",
	assets.SortTitle:     "a.title",
}

// ListAssets runs filter, ranking, owner join and total count in one
// statement. The total comes from a window count over the filtered set.
func (p *Postgres) ListAssets(ctx context.Context, q assets.ListQuery) ([]assets.Asset, int64, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.IncludeUnpublished {
		where = append(where, "a.published = TRUE")
	}
	if q.OwnerID != "" {
		where = append(where, "a.owner_id = "+arg(q.OwnerID))
	}

	rank := "0::real"
	if q.Search != "" {
		tsq := "plainto_tsquery('english', " + arg(q.Search) + ")"
		where = append(where, "to_tsvector('english', a.title || ' ' || a.description) @@ "+tsq)
		rank = "ts_rank(setweight(to_tsvector('english', a.title), 'A') || setweight(to_tsvector('english', a.description), 'B'), " + tsq + ")"
	}

	col, ok := sortColumns[q.SortBy]
	dir := "DESC"
	if storage.Ascending(q) {
		dir = "ASC"
	}
	if !ok {
		col, dir = "a.created_at", "DESC"
	}
	order := fmt.Sprintf("%s %s, a.id ASC", col, dir)
	if q.Search != "" {
		order = "score DESC, " + order
	}

	cond := ""
	if len(where) > 0 {
		cond = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
	SELECT %s, %s, %s AS score, COUNT(*) OVER() AS total
	FROM assets a
	LEFT JOIN owners o ON o.id = a.owner_id
	%s
	ORDER BY %s
	LIMIT %s OFFSET %s`,
		assetColumns, ownerColumns, rank, cond, order, arg(q.Limit), arg(q.Offset()))

	rows, err := p.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []assets.Asset{}
	var total int64
	for rows.Next() {
		var (
			oc    ownerCols
			score float64
		)
		a, err := scanAsset(rows, append(oc.dest(), &score, &total)...)
		if err != nil {
			return nil, 0, err
		}
		a.Owner = oc.summary()
		a.Score = score
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the last row yields no rows and therefore no window
	// count, so the total has to be fetched separately.
	if len(items) == 0 && q.Offset() > 0 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM assets a %s`, cond)
		if err := p.Db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (p *Postgres) IncrementViews(ctx context.Context, id string) error {
	res, err := p.Db.ExecContext(ctx, `UPDATE assets SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (p *Postgres) AddEngagement(ctx context.Context, e *assets.Engagement) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := p.Db.ExecContext(ctx,
		`INSERT INTO engagement (id, asset_id, owner_id, kind, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AssetID, e.OwnerID, string(e.Kind), e.Content, e.CreatedAt)
	return err
}

func (p *Postgres) CountEngagement(ctx context.Context, assetID string, kind assets.EngagementKind) (int64, error) {
	var n int64
	err := p.Db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM engagement WHERE asset_id = $1 AND kind = $2`, assetID, string(kind)).Scan(&n)
	return n, err
}

func (p *Postgres) DeleteEngagement(ctx context.Context, assetID string) (int64, error) {
	res, err := p.Db.ExecContext(ctx, `DELETE FROM engagement WHERE asset_id = $1`, assetID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *Postgres) CreateOwner(ctx context.Context, o *users.Owner) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO owners (id, username, fullname, avatar, email, watch_history, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.Db.ExecContext(ctx, query,
		o.ID, o.Username, o.FullName, o.Avatar, o.Email, pq.Array(o.WatchHistory), o.CreatedAt)
	return err
}

func (p *Postgres) GetOwner(ctx context.Context, id string) (*users.Owner, error) {
	var o users.Owner
	err := p.Db.QueryRowContext(ctx,
		`SELECT id, username, fullname, avatar, email, watch_history, created_at FROM owners WHERE id = $1`, id,
	).Scan(&o.ID, &o.Username, &o.FullName, &o.Avatar, &o.Email, pq.Array(&o.WatchHistory), &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) AppendWatchHistory(ctx context.Context, ownerID, assetID string) error {
	query := `
	UPDATE owners
	SET watch_history = array_append(watch_history, $2)
	WHERE id = $1 AND NOT ($2 = ANY(watch_history))
	`
	res, err := p.Db.ExecContext(ctx, query, ownerID, assetID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	// Nothing updated: either the asset is already in the history or the
	// owner does not exist.
	var exists bool
	if err := p.Db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM owners WHERE id = $1)`, ownerID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}
