package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultPostgresTable = "warden_sessions"

// PostgresOptions configures a Postgres store.
type PostgresOptions struct {
	Pool    *pgxpool.Pool
	Cookie  CookieOptions
	Table   string
	TTL     time.Duration
	Timeout time.Duration
}

// PostgresStore stores session values as JSONB rows addressed by a session id
// cookie.
type PostgresStore struct {
	CookieOptions
	pool    *pgxpool.Pool
	table   string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewPostgresStore builds a Postgres-backed store.
func NewPostgresStore(options PostgresOptions) (*PostgresStore, error) {
	if options.Pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	table := strings.TrimSpace(options.Table)
	if table == "" {
		table = DefaultPostgresTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name: %s", table)
	}
	cookie := options.Cookie
	if cookie.Name == "" {
		cookie = DefaultCookieOptions("warden_session")
	}

	return &PostgresStore{
		CookieOptions: cookie,
		pool:          options.Pool,
		table:         table,
		ttl:           options.TTL,
		timeout:       options.Timeout,
		now:           time.Now,
	}, nil
}

// OpenPostgres connects a pool for dsn and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// EnsureTable creates the session table if it does not exist.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		expires_at TIMESTAMPTZ
	)`, s.table)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("creating session table: %w", err)
	}
	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_expires_idx ON %s (expires_at)", strings.ReplaceAll(s.table, ".", "_"), s.table)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("creating session index: %w", err)
	}
	return nil
}

// Cleanup removes expired sessions.
func (s *PostgresStore) Cleanup(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < $1", s.table), s.now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get loads a session from the request.
func (s *PostgresStore) Get(r *http.Request) (*Session, error) {
	id, ok := s.read(r)
	if !ok {
		return s.fresh()
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	var payload []byte
	var expiresAt *time.Time
	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE id = $1", s.table)
	err := s.pool.QueryRow(ctx, query, id).Scan(&payload, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.fresh()
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if expiresAt != nil && !s.now().Before(*expiresAt) {
		_, _ = s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
		return s.fresh()
	}

	values := map[string]string{}
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &Session{ID: id, Values: values}, nil
}

// Save upserts the session row and refreshes its expiry.
func (s *PostgresStore) Save(w http.ResponseWriter, session *Session) error {
	if session == nil {
		return ErrMissingSession
	}
	if session.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	payload, err := json.Marshal(session.Values)
	if err != nil {
		return err
	}

	now := s.now()
	var expiresAt *time.Time
	if s.ttl > 0 {
		at := now.Add(s.ttl)
		expiresAt = &at
	}

	ctx, cancel := s.context(context.Background())
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, session.ID, payload, expiresAt); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.write(w, session.ID, s.ttl, now)
	session.markSaved()
	return nil
}

// Clear deletes the session row and expires the cookie.
func (s *PostgresStore) Clear(w http.ResponseWriter, session *Session) {
	if session != nil && session.ID != "" {
		ctx, cancel := s.context(context.Background())
		defer cancel()
		_, _ = s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), session.ID)
	}
	s.expire(w)
	if session != nil {
		session.reset()
	}
}

func (s *PostgresStore) fresh() (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return newEmpty(id), nil
}

func (s *PostgresStore) context(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)?$`)
