package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpAttribution/internal/model"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists the attribution ledger in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveSnapshot upserts every entity of snap in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	queuePools(batch, snap.Pools)
	queueTokens(batch, snap.Tokens)
	queueShares(batch, snap.Shares)
	queueAttributions(batch, snap.Attributions)
	queuePositions(batch, snap.Positions)

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert snapshot: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func queuePools(batch *pgx.Batch, pools []*model.Pool) {
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (address, kind, token0, token1, tick_spacing, created_block, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (address)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				tick_spacing = EXCLUDED.tick_spacing,
				created_block = EXCLUDED.created_block,
				updated_at = now()
		`,
			model.AddressKey(pool.Address),
			pool.Kind.String(),
			optionalAddress(pool.Token0),
			optionalAddress(pool.Token1),
			pool.TickSpacing,
			int64(pool.CreatedBlock),
		)
	}
}

func queueTokens(batch *pgx.Batch, tokens []model.TokenMeta) {
	for _, meta := range tokens {
		batch.Queue(`
			INSERT INTO tokens (address, decimals, symbol, name, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (address)
			DO UPDATE SET
				decimals = EXCLUDED.decimals,
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				updated_at = now()
		`,
			model.AddressKey(common.HexToAddress(meta.Address)),
			int16(meta.Decimals),
			meta.Symbol,
			meta.Name,
		)
	}
}

func queueShares(batch *pgx.Batch, shares []*model.LPShare) {
	for _, share := range shares {
		batch.Queue(`
			INSERT INTO lp_shares (pool, holder, amount, updated_at)
			VALUES ($1, $2, $3::text::numeric, now())
			ON CONFLICT (pool, holder)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		`,
			model.AddressKey(share.Pool),
			model.AddressKey(share.Holder),
			numeric(share.Amount),
		)
	}
}

func queueAttributions(batch *pgx.Batch, attrs []*model.DepositAttribution) {
	for _, attr := range attrs {
		batch.Queue(`
			INSERT INTO deposit_attributions (pool, user_address, token, balance, updated_at)
			VALUES ($1, $2, $3, $4::text::numeric, now())
			ON CONFLICT (pool, user_address, token)
			DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()
		`,
			model.AddressKey(attr.Pool),
			model.AddressKey(attr.User),
			model.AddressKey(attr.Token),
			numeric(attr.Balance),
		)
	}
}

func queuePositions(batch *pgx.Batch, positions []*model.Position) {
	for _, pos := range positions {
		batch.Queue(`
			INSERT INTO positions (
				token_id, owner, pool, token0, token1, tick_spacing, tick_lower, tick_upper,
				liquidity, deposited0, deposited1, rejected, updated_at
			) VALUES (
				$1::text::numeric, $2, $3, $4, $5, $6, $7, $8,
				$9::text::numeric, $10::text::numeric, $11::text::numeric, $12, now()
			)
			ON CONFLICT (token_id)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				pool = EXCLUDED.pool,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				tick_spacing = EXCLUDED.tick_spacing,
				tick_lower = EXCLUDED.tick_lower,
				tick_upper = EXCLUDED.tick_upper,
				liquidity = EXCLUDED.liquidity,
				deposited0 = EXCLUDED.deposited0,
				deposited1 = EXCLUDED.deposited1,
				rejected = EXCLUDED.rejected,
				updated_at = now()
		`,
			model.PositionID(pos.TokenID),
			optionalAddress(pos.Owner),
			optionalAddress(pos.Pool),
			optionalAddress(pos.Token0),
			optionalAddress(pos.Token1),
			pos.TickSpacing,
			pos.TickLower,
			pos.TickUpper,
			numeric(pos.Liquidity),
			numeric(pos.Deposited0),
			numeric(pos.Deposited1),
			pos.Rejected,
		)
	}
}

// LoadSnapshot reads every persisted entity.
func (s *Store) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	var err error
	if snap.Pools, err = s.loadPools(ctx); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Tokens, err = s.loadTokens(ctx); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Shares, err = s.loadShares(ctx); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Attributions, err = s.loadAttributions(ctx, ""); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Positions, err = s.loadPositions(ctx); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadPools(ctx context.Context) ([]*model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, kind, token0, token1, tick_spacing, created_block
		FROM pools ORDER BY address
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var out []*model.Pool
	for rows.Next() {
		var address, kind, token0, token1 string
		var tickSpacing int32
		var createdBlock int64
		if err := rows.Scan(&address, &kind, &token0, &token1, &tickSpacing, &createdBlock); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, &model.Pool{
			Address:      common.HexToAddress(address),
			Kind:         model.ParsePoolKind(kind),
			Token0:       parseAddress(token0),
			Token1:       parseAddress(token1),
			TickSpacing:  tickSpacing,
			CreatedBlock: uint64(createdBlock),
		})
	}
	return out, rows.Err()
}

func (s *Store) loadTokens(ctx context.Context) ([]model.TokenMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, decimals, symbol, name FROM tokens ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var out []model.TokenMeta
	for rows.Next() {
		var meta model.TokenMeta
		var decimals int16
		if err := rows.Scan(&meta.Address, &decimals, &meta.Symbol, &meta.Name); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		meta.Address = common.HexToAddress(meta.Address).Hex()
		meta.Decimals = uint8(decimals)
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *Store) loadShares(ctx context.Context) ([]*model.LPShare, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool, holder, amount::text FROM lp_shares ORDER BY pool, holder`)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	var out []*model.LPShare
	for rows.Next() {
		var pool, holder, amount string
		if err := rows.Scan(&pool, &holder, &amount); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		value, err := parseNumeric(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.LPShare{
			Pool:   common.HexToAddress(pool),
			Holder: common.HexToAddress(holder),
			Amount: value,
		})
	}
	return out, rows.Err()
}

func (s *Store) loadAttributions(ctx context.Context, user string) ([]*model.DepositAttribution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool, user_address, token, balance::text
		FROM deposit_attributions
		WHERE $1 = '' OR user_address = $1
		ORDER BY pool, user_address, token
	`, user)
	if err != nil {
		return nil, fmt.Errorf("query attributions: %w", err)
	}
	defer rows.Close()

	var out []*model.DepositAttribution
	for rows.Next() {
		var pool, owner, token, balance string
		if err := rows.Scan(&pool, &owner, &token, &balance); err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		value, err := parseNumeric(balance)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.DepositAttribution{
			Pool:    common.HexToAddress(pool),
			User:    common.HexToAddress(owner),
			Token:   common.HexToAddress(token),
			Balance: value,
		})
	}
	return out, rows.Err()
}

func (s *Store) loadPositions(ctx context.Context) ([]*model.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id::text, owner, pool, token0, token1, tick_spacing, tick_lower, tick_upper,
			liquidity::text, deposited0::text, deposited1::text, rejected
		FROM positions ORDER BY token_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*model.Position
	for rows.Next() {
		var tokenID, owner, pool, token0, token1, liquidity, deposited0, deposited1 string
		pos := &model.Position{}
		if err := rows.Scan(
			&tokenID, &owner, &pool, &token0, &token1,
			&pos.TickSpacing, &pos.TickLower, &pos.TickUpper,
			&liquidity, &deposited0, &deposited1, &pos.Rejected,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		for _, field := range []struct {
			dst **big.Int
			raw string
		}{
			{&pos.TokenID, tokenID},
			{&pos.Liquidity, liquidity},
			{&pos.Deposited0, deposited0},
			{&pos.Deposited1, deposited1},
		} {
			value, err := parseNumeric(field.raw)
			if err != nil {
				return nil, err
			}
			*field.dst = value
		}
		pos.Owner = parseAddress(owner)
		pos.Pool = parseAddress(pool)
		pos.Token0 = parseAddress(token0)
		pos.Token1 = parseAddress(token1)
		out = append(out, pos)
	}
	return out, rows.Err()
}

// UserAttributions returns the deposited basis of user across pools.
func (s *Store) UserAttributions(ctx context.Context, user common.Address) ([]*model.DepositAttribution, error) {
	return s.loadAttributions(ctx, model.AddressKey(user))
}

// Balance returns one attribution balance, or ErrNotFound.
func (s *Store) Balance(ctx context.Context, pool, user, token common.Address) (*big.Int, error) {
	var balance string
	row := s.pool.QueryRow(ctx, `
		SELECT balance::text FROM deposit_attributions
		WHERE pool = $1 AND user_address = $2 AND token = $3
	`, model.AddressKey(pool), model.AddressKey(user), model.AddressKey(token))
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return parseNumeric(balance)
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("parse numeric %q", raw)
	}
	return value, nil
}

func optionalAddress(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return model.AddressKey(addr)
}

func parseAddress(raw string) common.Address {
	if raw == "" {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}
