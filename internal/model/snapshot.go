package model

// Snapshot is a point-in-time copy of every persisted entity.
type Snapshot struct {
	Pools        []*Pool
	Tokens       []TokenMeta
	Shares       []*LPShare
	Attributions []*DepositAttribution
	Positions    []*Position
}
