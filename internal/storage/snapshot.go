package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"lpAttribution/internal/model"
)

// Snapshot line entity names.
const (
	EntityPool        = "pool"
	EntityToken       = "token"
	EntityShare       = "lp_share"
	EntityAttribution = "deposit_attribution"
	EntityPosition    = "position"
)

// SnapshotLine is one exported entity. Integer quantities are decimal strings.
type SnapshotLine struct {
	Entity       string `json:"entity"`
	ID           string `json:"id"`
	Pool         string `json:"pool,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Holder       string `json:"holder,omitempty"`
	User         string `json:"user,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Token        string `json:"token,omitempty"`
	Token0       string `json:"token0,omitempty"`
	Token1       string `json:"token1,omitempty"`
	TickSpacing  int32  `json:"tick_spacing,omitempty"`
	TickLower    int32  `json:"tick_lower,omitempty"`
	TickUpper    int32  `json:"tick_upper,omitempty"`
	CreatedBlock uint64 `json:"created_block,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Liquidity    string `json:"liquidity,omitempty"`
	Deposited0   string `json:"deposited0,omitempty"`
	Deposited1   string `json:"deposited1,omitempty"`
	Rejected     bool   `json:"rejected,omitempty"`
	Decimals     uint8  `json:"decimals,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	Name         string `json:"name,omitempty"`
}

// SnapshotLines flattens snap into export lines in snapshot order.
func SnapshotLines(snap model.Snapshot) []SnapshotLine {
	lines := make([]SnapshotLine, 0, len(snap.Pools)+len(snap.Tokens)+len(snap.Shares)+len(snap.Attributions)+len(snap.Positions))
	for _, pool := range snap.Pools {
		lines = append(lines, SnapshotLine{
			Entity:       EntityPool,
			ID:           model.AddressKey(pool.Address),
			Pool:         model.AddressKey(pool.Address),
			Kind:         pool.Kind.String(),
			Token0:       addressText(pool.Token0),
			Token1:       addressText(pool.Token1),
			TickSpacing:  pool.TickSpacing,
			CreatedBlock: pool.CreatedBlock,
		})
	}
	for _, meta := range snap.Tokens {
		lines = append(lines, SnapshotLine{
			Entity:   EntityToken,
			ID:       model.AddressKey(common.HexToAddress(meta.Address)),
			Token:    model.AddressKey(common.HexToAddress(meta.Address)),
			Decimals: meta.Decimals,
			Symbol:   meta.Symbol,
			Name:     meta.Name,
		})
	}
	for _, share := range snap.Shares {
		lines = append(lines, SnapshotLine{
			Entity: EntityShare,
			ID:     model.ShareID(share.Pool, share.Holder),
			Pool:   model.AddressKey(share.Pool),
			Holder: model.AddressKey(share.Holder),
			Amount: intText(share.Amount),
		})
	}
	for _, attr := range snap.Attributions {
		lines = append(lines, SnapshotLine{
			Entity: EntityAttribution,
			ID:     model.AttributionID(attr.Pool, attr.User, attr.Token),
			Pool:   model.AddressKey(attr.Pool),
			User:   model.AddressKey(attr.User),
			Token:  model.AddressKey(attr.Token),
			Amount: intText(attr.Balance),
		})
	}
	for _, pos := range snap.Positions {
		lines = append(lines, SnapshotLine{
			Entity:      EntityPosition,
			ID:          model.PositionID(pos.TokenID),
			Pool:        addressText(pos.Pool),
			Owner:       addressText(pos.Owner),
			Token0:      addressText(pos.Token0),
			Token1:      addressText(pos.Token1),
			TickSpacing: pos.TickSpacing,
			TickLower:   pos.TickLower,
			TickUpper:   pos.TickUpper,
			Liquidity:   intText(pos.Liquidity),
			Deposited0:  intText(pos.Deposited0),
			Deposited1:  intText(pos.Deposited1),
			Rejected:    pos.Rejected,
		})
	}
	return lines
}

// WriteSnapshot replaces the file at path with snap as JSON lines.
func WriteSnapshot(path string, snap model.Snapshot) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, line := range SnapshotLines(snap) {
		if err := encoder.Encode(line); err != nil {
			file.Close()
			return fmt.Errorf("write snapshot line: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a file written by WriteSnapshot. A missing file yields an
// empty snapshot and false.
func ReadSnapshot(path string) (model.Snapshot, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	var snap model.Snapshot
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line SnapshotLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return model.Snapshot{}, false, fmt.Errorf("parse snapshot line: %w", err)
		}
		if err := line.apply(&snap); err != nil {
			return model.Snapshot{}, false, err
		}
	}
	if err := scanner.Err(); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, true, nil
}

func (l SnapshotLine) apply(snap *model.Snapshot) error {
	switch l.Entity {
	case EntityPool:
		snap.Pools = append(snap.Pools, &model.Pool{
			Address:      common.HexToAddress(l.Pool),
			Kind:         model.ParsePoolKind(l.Kind),
			Token0:       parseAddress(l.Token0),
			Token1:       parseAddress(l.Token1),
			TickSpacing:  l.TickSpacing,
			CreatedBlock: l.CreatedBlock,
		})
	case EntityToken:
		snap.Tokens = append(snap.Tokens, model.TokenMeta{
			Address:  common.HexToAddress(l.Token).Hex(),
			Decimals: l.Decimals,
			Symbol:   l.Symbol,
			Name:     l.Name,
		})
	case EntityShare:
		amount, err := parseInt(l.Amount)
		if err != nil {
			return err
		}
		snap.Shares = append(snap.Shares, &model.LPShare{
			Pool:   common.HexToAddress(l.Pool),
			Holder: common.HexToAddress(l.Holder),
			Amount: amount,
		})
	case EntityAttribution:
		balance, err := parseInt(l.Amount)
		if err != nil {
			return err
		}
		snap.Attributions = append(snap.Attributions, &model.DepositAttribution{
			Pool:    common.HexToAddress(l.Pool),
			User:    common.HexToAddress(l.User),
			Token:   common.HexToAddress(l.Token),
			Balance: balance,
		})
	case EntityPosition:
		pos := &model.Position{
			Owner:       parseAddress(l.Owner),
			Pool:        parseAddress(l.Pool),
			Token0:      parseAddress(l.Token0),
			Token1:      parseAddress(l.Token1),
			TickSpacing: l.TickSpacing,
			TickLower:   l.TickLower,
			TickUpper:   l.TickUpper,
			Rejected:    l.Rejected,
		}
		var err error
		if pos.TokenID, err = parseInt(l.ID); err != nil {
			return err
		}
		if pos.Liquidity, err = parseInt(l.Liquidity); err != nil {
			return err
		}
		if pos.Deposited0, err = parseInt(l.Deposited0); err != nil {
			return err
		}
		if pos.Deposited1, err = parseInt(l.Deposited1); err != nil {
			return err
		}
		snap.Positions = append(snap.Positions, pos)
	default:
		return fmt.Errorf("unknown snapshot entity %q", l.Entity)
	}
	return nil
}

func addressText(addr common.Address) string {
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

func intText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(raw string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("parse integer %q", raw)
	}
	return v, nil
}
