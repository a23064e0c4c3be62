package model

// PoolCreatedEventData is the decoded factory creation payload for either
// pool family.
type PoolCreatedEventData struct {
	Pool        string `json:"pool"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Stable      bool   `json:"stable,omitempty"`
	TickSpacing int32  `json:"tick_spacing,omitempty"`
}

// TransferEventData is the decoded LP-token Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// PositionTransferEventData is the decoded position-NFT Transfer payload.
type PositionTransferEventData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
}

// MintEventData is the decoded constant-product Mint payload.
type MintEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// BurnEventData is the decoded constant-product Burn payload.
type BurnEventData struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// PoolLiquidityEventData is the decoded concentrated-liquidity pool Mint/Burn payload.
type PoolLiquidityEventData struct {
	Sender    string `json:"sender,omitempty"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// PositionLiquidityEventData is the decoded position manager
// IncreaseLiquidity/DecreaseLiquidity payload.
type PositionLiquidityEventData struct {
	TokenID   string `json:"token_id"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}
