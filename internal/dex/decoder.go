package dex

import (
	"lpAttribution/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}

// Event names produced by LiquidityDecoder.
const (
	EventPairCreated       = "PairCreated"
	EventPoolCreated       = "PoolCreated"
	EventCLPoolCreated     = "CLPoolCreated"
	EventTransfer          = "Transfer"
	EventPositionTransfer  = "PositionTransfer"
	EventMint              = "Mint"
	EventBurn              = "Burn"
	EventCLMint            = "CLMint"
	EventCLBurn            = "CLBurn"
	EventIncreaseLiquidity = "IncreaseLiquidity"
	EventDecreaseLiquidity = "DecreaseLiquidity"
)
