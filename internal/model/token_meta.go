package model

import "strings"

// TokenMeta captures ERC20 metadata for a pool token. Fields a token failed
// to report stay at their zero value.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Complete reports whether every metadata read succeeded.
func (m TokenMeta) Complete() bool {
	return m.Decimals != 0 && strings.TrimSpace(m.Symbol) != "" && strings.TrimSpace(m.Name) != ""
}
