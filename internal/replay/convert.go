package replay

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"lpAttribution/internal/attribution"
	"lpAttribution/internal/dex"
	"lpAttribution/internal/model"
)

// ToEvent converts a decoded event into the engine's typed form. receipt and
// origin describe the event's transaction.
func ToEvent(ev *model.TypedEvent, receipt []*types.Log, origin common.Address) (attribution.Event, error) {
	if ev == nil {
		return nil, fmt.Errorf("nil event")
	}
	emitter, err := parseAddress(ev.Address)
	if err != nil {
		return nil, fmt.Errorf("emitter: %w", err)
	}
	meta := attribution.Meta{
		Address:     emitter,
		BlockNumber: ev.BlockNumber,
		TxHash:      common.HexToHash(ev.TxHash),
		LogIndex:    uint(ev.LogIndex),
		TxOrigin:    origin,
		Receipt:     receipt,
	}

	switch data := ev.Decoded.(type) {
	case model.PoolCreatedEventData:
		kind := model.PoolKindConstantProduct
		if ev.EventName == dex.EventCLPoolCreated {
			kind = model.PoolKindConcentrated
		}
		var out attribution.PoolCreated
		out.Meta = meta
		out.PoolKind = kind
		out.TickSpacing = data.TickSpacing
		if err := parseAddresses(
			field{"pool", data.Pool, &out.Pool},
			field{"token0", data.Token0, &out.Token0},
			field{"token1", data.Token1, &out.Token1},
		); err != nil {
			return nil, err
		}
		return &out, nil

	case model.TransferEventData:
		out := &attribution.LPTransfer{Meta: meta}
		if err := parseAddresses(field{"from", data.From, &out.From}, field{"to", data.To, &out.To}); err != nil {
			return nil, err
		}
		if out.Value, err = parseBig("value", data.Value); err != nil {
			return nil, err
		}
		return out, nil

	case model.PositionTransferEventData:
		out := &attribution.PositionTransfer{Meta: meta}
		if err := parseAddresses(field{"from", data.From, &out.From}, field{"to", data.To, &out.To}); err != nil {
			return nil, err
		}
		if out.TokenID, err = parseBig("token_id", data.TokenID); err != nil {
			return nil, err
		}
		return out, nil

	case model.MintEventData:
		out := &attribution.Mint{Meta: meta}
		if err := parseAddresses(field{"sender", data.Sender, &out.Sender}); err != nil {
			return nil, err
		}
		if err := parseBigs(bigField{"amount0", data.Amount0, &out.Amount0}, bigField{"amount1", data.Amount1, &out.Amount1}); err != nil {
			return nil, err
		}
		return out, nil

	case model.BurnEventData:
		out := &attribution.Burn{Meta: meta}
		if err := parseAddresses(field{"sender", data.Sender, &out.Sender}, field{"to", data.To, &out.To}); err != nil {
			return nil, err
		}
		if err := parseBigs(bigField{"amount0", data.Amount0, &out.Amount0}, bigField{"amount1", data.Amount1, &out.Amount1}); err != nil {
			return nil, err
		}
		return out, nil

	case model.PoolLiquidityEventData:
		out := &attribution.PoolLiquidity{Meta: meta, Burn: ev.EventName == dex.EventCLBurn}
		if err := parseAddresses(field{"owner", data.Owner, &out.Owner}); err != nil {
			return nil, err
		}
		if out.Amount, err = parseBig("amount", data.Amount); err != nil {
			return nil, err
		}
		return out, nil

	case model.PositionLiquidityEventData:
		var tokenID, liquidity, amount0, amount1 *big.Int
		if err := parseBigs(
			bigField{"token_id", data.TokenID, &tokenID},
			bigField{"liquidity", data.Liquidity, &liquidity},
			bigField{"amount0", data.Amount0, &amount0},
			bigField{"amount1", data.Amount1, &amount1},
		); err != nil {
			return nil, err
		}
		if ev.EventName == dex.EventDecreaseLiquidity {
			return &attribution.DecreaseLiquidity{Meta: meta, TokenID: tokenID, Liquidity: liquidity, Amount0: amount0, Amount1: amount1}, nil
		}
		return &attribution.IncreaseLiquidity{Meta: meta, TokenID: tokenID, Liquidity: liquidity, Amount0: amount0, Amount1: amount1}, nil

	default:
		return nil, fmt.Errorf("unsupported event %s (%T)", ev.EventName, ev.Decoded)
	}
}

// ToLog rebuilds a go-ethereum log from a stored record.
func ToLog(record model.LogRecord) (*types.Log, error) {
	topics := make([]common.Hash, 0, len(record.Topics))
	for _, topic := range record.Topics {
		raw, err := hexutil.Decode(topic)
		if err != nil || len(raw) != common.HashLength {
			return nil, fmt.Errorf("invalid topic: %s", topic)
		}
		topics = append(topics, common.BytesToHash(raw))
	}
	var data []byte
	if record.Data != "" && record.Data != "0x" {
		var err error
		if data, err = hexutil.Decode(record.Data); err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
	}
	address, err := parseAddress(record.Address)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: record.BlockNumber,
		TxHash:      common.HexToHash(record.TxHash),
		TxIndex:     uint(record.TxIndex),
		BlockHash:   common.HexToHash(record.BlockHash),
		Index:       uint(record.LogIndex),
		Removed:     record.Removed,
	}, nil
}

type field struct {
	name string
	raw  string
	dst  *common.Address
}

type bigField struct {
	name string
	raw  string
	dst  **big.Int
}

func parseAddresses(fields ...field) error {
	for _, f := range fields {
		addr, err := parseAddress(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = addr
	}
	return nil
}

func parseBigs(fields ...bigField) error {
	for _, f := range fields {
		v, err := parseBig(f.name, f.raw)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address: %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func parseBig(name, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	return v, nil
}
