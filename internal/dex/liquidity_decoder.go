package dex

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lpAttribution/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map aliases extra topic0 values to a known layout name.
	Topic0Map map[string]string
}

type decodeFunc func(log model.LogRecord) (string, interface{}, error)

// LiquidityDecoder decodes factory, LP token, pool and position manager
// events for both constant-product and concentrated-liquidity pools.
type LiquidityDecoder struct {
	pair        abi.ABI
	solidly     abi.ABI
	clPool      abi.ABI
	npm         abi.ABI
	v2Factory   abi.ABI
	clFactory   abi.ABI
	topicToFunc map[string]decodeFunc
}

// NewLiquidityDecoder builds the decoder.
func NewLiquidityDecoder(cfg DecoderConfig) (*LiquidityDecoder, error) {
	d := &LiquidityDecoder{}
	var err error
	if d.pair, err = PairABI(); err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	if d.solidly, err = SolidlyPoolABI(); err != nil {
		return nil, fmt.Errorf("parse solidly abi: %w", err)
	}
	if d.clPool, err = CLPoolABI(); err != nil {
		return nil, fmt.Errorf("parse cl pool abi: %w", err)
	}
	if d.npm, err = PositionManagerABI(); err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	if d.v2Factory, err = V2FactoryABI(); err != nil {
		return nil, fmt.Errorf("parse v2 factory abi: %w", err)
	}
	if d.clFactory, err = CLFactoryABI(); err != nil {
		return nil, fmt.Errorf("parse cl factory abi: %w", err)
	}

	byLayout := d.layouts()
	d.topicToFunc = map[string]decodeFunc{
		topicKey(d.v2Factory.Events["PairCreated"].ID): byLayout["paircreated"],
		topicKey(d.v2Factory.Events["PoolCreated"].ID): byLayout["poolcreated"],
		topicKey(d.clFactory.Events["PoolCreated"].ID): byLayout["clpoolcreated"],
		topicKey(d.pair.Events["Transfer"].ID):         byLayout["transfer"],
		topicKey(d.pair.Events["Mint"].ID):             byLayout["mint"],
		topicKey(d.pair.Events["Burn"].ID):             byLayout["pairburn"],
		topicKey(d.solidly.Events["Burn"].ID):          byLayout["burn"],
		topicKey(d.clPool.Events["Mint"].ID):           byLayout["clmint"],
		topicKey(d.clPool.Events["Burn"].ID):           byLayout["clburn"],
		topicKey(d.npm.Events["IncreaseLiquidity"].ID): byLayout["increaseliquidity"],
		topicKey(d.npm.Events["DecreaseLiquidity"].ID): byLayout["decreaseliquidity"],
	}

	for topic0, name := range cfg.Topic0Map {
		fn, ok := byLayout[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		d.topicToFunc[strings.ToLower(topic0)] = fn
	}

	return d, nil
}

func (d *LiquidityDecoder) layouts() map[string]decodeFunc {
	return map[string]decodeFunc{
		"paircreated":       d.decodePairCreated,
		"poolcreated":       d.decodePoolCreated,
		"clpoolcreated":     d.decodeCLPoolCreated,
		"transfer":          d.decodeTransfer,
		"mint":              d.decodeMint,
		"burn":              d.decodeBurnWith(d.solidly.Events["Burn"]),
		"pairburn":          d.decodeBurnWith(d.pair.Events["Burn"]),
		"clmint":            d.decodeCLMint,
		"clburn":            d.decodeCLBurn,
		"increaseliquidity": d.decodePositionLiquidity(EventIncreaseLiquidity),
		"decreaseliquidity": d.decodePositionLiquidity(EventDecreaseLiquidity),
	}
}

// Topics lists every topic0 the decoder understands, sorted.
func (d *LiquidityDecoder) Topics() []string {
	out := make([]string, 0, len(d.topicToFunc))
	for topic := range d.topicToFunc {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *LiquidityDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToFunc[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *LiquidityDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	fn, ok := d.topicToFunc[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	name, decoded, err := fn(log)
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded), nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		TxFrom:      log.TxFrom,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         raw,
	}
}

func (d *LiquidityDecoder) decodePairCreated(log model.LogRecord) (string, interface{}, error) {
	event := d.v2Factory.Events["PairCreated"]
	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 2 {
		return "", nil, fmt.Errorf("unexpected pair created values: %d", len(values))
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return "", nil, err
	}
	return EventPairCreated, model.PoolCreatedEventData{
		Pool:   pair.Hex(),
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
	}, nil
}

func (d *LiquidityDecoder) decodePoolCreated(log model.LogRecord) (string, interface{}, error) {
	event := d.v2Factory.Events["PoolCreated"]
	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Stable bool
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 2 {
		return "", nil, fmt.Errorf("unexpected pool created values: %d", len(values))
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return "", nil, err
	}
	return EventPoolCreated, model.PoolCreatedEventData{
		Pool:   pool.Hex(),
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
		Stable: indexed.Stable,
	}, nil
}

func (d *LiquidityDecoder) decodeCLPoolCreated(log model.LogRecord) (string, interface{}, error) {
	event := d.clFactory.Events["PoolCreated"]
	var indexed struct {
		Token0      common.Address
		Token1      common.Address
		TickSpacing *big.Int
		Pool        common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}
	tickSpacing, err := int24FromBig(indexed.TickSpacing)
	if err != nil {
		return "", nil, err
	}
	return EventCLPoolCreated, model.PoolCreatedEventData{
		Pool:        indexed.Pool.Hex(),
		Token0:      indexed.Token0.Hex(),
		Token1:      indexed.Token1.Hex(),
		TickSpacing: tickSpacing,
	}, nil
}

// decodeTransfer splits the shared Transfer topic0 by topic count: ERC20
// transfers index two arguments, ERC721 transfers index three.
func (d *LiquidityDecoder) decodeTransfer(log model.LogRecord) (string, interface{}, error) {
	if len(log.Topics) == 4 {
		event := d.npm.Events["Transfer"]
		var indexed struct {
			From    common.Address
			To      common.Address
			TokenId *big.Int
		}
		if err := parseIndexed(event, log.Topics, &indexed); err != nil {
			return "", nil, err
		}
		return EventPositionTransfer, model.PositionTransferEventData{
			From:    indexed.From.Hex(),
			To:      indexed.To.Hex(),
			TokenID: indexed.TokenId.String(),
		}, nil
	}

	event := d.pair.Events["Transfer"]
	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 1 {
		return "", nil, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return "", nil, err
	}
	return EventTransfer, model.TransferEventData{
		From:  indexed.From.Hex(),
		To:    indexed.To.Hex(),
		Value: value.String(),
	}, nil
}

func (d *LiquidityDecoder) decodeMint(log model.LogRecord) (string, interface{}, error) {
	event := d.pair.Events["Mint"]
	var indexed struct {
		Sender common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 2 {
		return "", nil, fmt.Errorf("unexpected mint values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return "", nil, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return "", nil, err
	}
	return EventMint, model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

// decodeBurnWith handles both Burn layouts; they index the same two
// addresses in a different order.
func (d *LiquidityDecoder) decodeBurnWith(event abi.Event) decodeFunc {
	return func(log model.LogRecord) (string, interface{}, error) {
		var indexed struct {
			Sender common.Address
			To     common.Address
		}
		if err := parseIndexed(event, log.Topics, &indexed); err != nil {
			return "", nil, err
		}
		values, err := unpackNonIndexed(event, log.Data)
		if err != nil {
			return "", nil, err
		}
		if len(values) != 2 {
			return "", nil, fmt.Errorf("unexpected burn values: %d", len(values))
		}
		amount0, err := asBigInt(values[0])
		if err != nil {
			return "", nil, err
		}
		amount1, err := asBigInt(values[1])
		if err != nil {
			return "", nil, err
		}
		return EventBurn, model.BurnEventData{
			Sender:  indexed.Sender.Hex(),
			To:      indexed.To.Hex(),
			Amount0: amount0.String(),
			Amount1: amount1.String(),
		}, nil
	}
}

func (d *LiquidityDecoder) decodeCLMint(log model.LogRecord) (string, interface{}, error) {
	event := d.clPool.Events["Mint"]
	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 4 {
		return "", nil, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return "", nil, err
	}
	amounts, err := asBigInts(values[1:])
	if err != nil {
		return "", nil, err
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return "", nil, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return "", nil, err
	}

	return EventCLMint, model.PoolLiquidityEventData{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amounts[0].String(),
		Amount0:   amounts[1].String(),
		Amount1:   amounts[2].String(),
	}, nil
}

func (d *LiquidityDecoder) decodeCLBurn(log model.LogRecord) (string, interface{}, error) {
	event := d.clPool.Events["Burn"]
	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return "", nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 3 {
		return "", nil, fmt.Errorf("unexpected burn values: %d", len(values))
	}
	amounts, err := asBigInts(values)
	if err != nil {
		return "", nil, err
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return "", nil, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return "", nil, err
	}

	return EventCLBurn, model.PoolLiquidityEventData{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amounts[0].String(),
		Amount0:   amounts[1].String(),
		Amount1:   amounts[2].String(),
	}, nil
}

func (d *LiquidityDecoder) decodePositionLiquidity(name string) decodeFunc {
	event := d.npm.Events[name]
	return func(log model.LogRecord) (string, interface{}, error) {
		var indexed struct {
			TokenId *big.Int
		}
		if err := parseIndexed(event, log.Topics, &indexed); err != nil {
			return "", nil, err
		}
		values, err := unpackNonIndexed(event, log.Data)
		if err != nil {
			return "", nil, err
		}
		if len(values) != 3 {
			return "", nil, fmt.Errorf("unexpected %s values: %d", name, len(values))
		}
		amounts, err := asBigInts(values)
		if err != nil {
			return "", nil, err
		}
		return name, model.PositionLiquidityEventData{
			TokenID:   indexed.TokenId.String(),
			Liquidity: amounts[0].String(),
			Amount0:   amounts[1].String(),
			Amount1:   amounts[2].String(),
		}, nil
	}
}

func topicKey(id common.Hash) string {
	return strings.ToLower(id.Hex())
}

func parseIndexed(event abi.Event, topics []string, out interface{}) error {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
