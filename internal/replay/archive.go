package replay

import (
	"context"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"cosmossdk.io/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
)

// schemaSQL is compiled into the binary so schema init works in runtime
// images that do not ship the source tree.
//
//go:embed schema.sql
var schemaSQL string

// Archive stores compressed replay blobs in PostgreSQL, keyed by content
// hash. It satisfies Store.
type Archive struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewArchive connects, pings, and applies the embedded schema.
func NewArchive(ctx context.Context, dsn string, logger log.Logger) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("replay archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("replay archive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("replay archive: init schema: %w", err)
	}
	return &Archive{pool: pool, logger: logger.With("module", "replay")}, nil
}

func (a *Archive) Put(ctx context.Context, blob []byte) (string, error) {
	h := engine.Keccak256(blob)
	key := hex.EncodeToString(h[:])
	const q = `INSERT INTO replays (hash, blob) VALUES ($1, $2) ON CONFLICT (hash) DO NOTHING`
	if _, err := a.pool.Exec(ctx, q, key, blob); err != nil {
		return "", fmt.Errorf("replay archive: put %s: %w", key, err)
	}
	a.logger.Debug("stored replay", "hash", key, "bytes", len(blob))
	return "pg://replays/" + key, nil
}

// Get fetches a blob by the URI Put returned.
func (a *Archive) Get(ctx context.Context, uri string) ([]byte, error) {
	key := strings.TrimPrefix(uri, "pg://replays/")
	const q = `SELECT blob FROM replays WHERE hash = $1`
	var blob []byte
	if err := a.pool.QueryRow(ctx, q, key).Scan(&blob); err != nil {
		return nil, fmt.Errorf("replay archive: get %s: %w", key, err)
	}
	return blob, nil
}

func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
