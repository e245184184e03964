package sandbox

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/internal/pkg/application/sandbox/migrations"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresConfig struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadPostgresConfiguration(ctx context.Context) PostgresConfig {
	return PostgresConfig{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "warp"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

// Enabled reports whether a database host has been configured
func (c PostgresConfig) Enabled() bool {
	return c.host != ""
}

func (c PostgresConfig) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and migrates the schema before returning
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (Store, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, nil, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	err = migrate(ctx, db)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.GetFromContext(ctx).Info("connected to database", "host", cfg.host, "dbname", cfg.dbname)

	return &postgresStore{pool: pool}, pool.Close, nil
}

var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return gooseUpContext(ctx, db, ".")
}

func (p *postgresStore) Insert(ctx context.Context, r Record) error {
	attributes, err := json.Marshal(r.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %s (%w)", err.Error(), errors.ErrBadRequest)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO objects (class_name, id, created_at, updated_at, attributes) VALUES ($1, $2, $3, $4, $5)`,
		r.ClassName, r.ID, r.CreatedAt, r.UpdatedAt, attributes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s with id %s already exists (%w)", r.ClassName, r.ID, errors.ErrBadRequest)
		}
		return err
	}

	return nil
}

func (p *postgresStore) Get(ctx context.Context, className, id string) (Record, error) {
	r := Record{ClassName: className, ID: id}
	var attributes []byte

	err := p.pool.QueryRow(ctx,
		`SELECT created_at, updated_at, attributes FROM objects WHERE class_name=$1 AND id=$2`,
		className, id,
	).Scan(&r.CreatedAt, &r.UpdatedAt, &attributes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, notFound(className, id)
		}
		return Record{}, err
	}

	r.Attributes, err = unmarshalAttributes(attributes)
	if err != nil {
		return Record{}, err
	}

	return r, nil
}

func (p *postgresStore) Replace(ctx context.Context, r Record) error {
	attributes, err := json.Marshal(r.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %s (%w)", err.Error(), errors.ErrBadRequest)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE objects SET updated_at=$3, attributes=$4 WHERE class_name=$1 AND id=$2`,
		r.ClassName, r.ID, r.UpdatedAt, attributes,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return notFound(r.ClassName, r.ID)
	}

	return nil
}

func (p *postgresStore) Delete(ctx context.Context, className, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM objects WHERE class_name=$1 AND id=$2`, className, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return notFound(className, id)
	}

	return nil
}

func unmarshalAttributes(b []byte) (map[string]any, error) {
	attributes := map[string]any{}
	if len(b) == 0 {
		return attributes, nil
	}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err := d.Decode(&attributes); err != nil {
		return nil, fmt.Errorf("failed to decode stored attributes: %w", err)
	}

	return attributes, nil
}
