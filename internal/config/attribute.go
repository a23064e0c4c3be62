package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// AttributeConfig holds configuration for the attribute command.
type AttributeConfig struct {
	RPCURL           string
	Input            string
	PGDSN            string
	FlushBlocks      uint64
	StateFile        string
	Whitelist        []string
	Intermediaries   []string
	PositionManager  string
	CLFactory        string
	WithdrawerPolicy string
	FromBlock        uint64
	SnapshotOut      string
	MetricsAddr      string
	FetchReceipts    bool
	LogLevel         string
}

// LoadAttribute merges config file, environment variables, and flags into
// AttributeConfig.
func LoadAttribute(cfgFile string, flags *pflag.FlagSet) (AttributeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":        uint64(1000),
		"withdrawer-policy": "lp-sender,burn-recipient,tx-origin",
		"log-level":         "info",
	})
	if err != nil {
		return AttributeConfig{}, err
	}

	cfg := AttributeConfig{
		RPCURL:           v.GetString("rpc"),
		Input:            v.GetString("in"),
		PGDSN:            v.GetString("pg-dsn"),
		FlushBlocks:      v.GetUint64("batch-size"),
		StateFile:        v.GetString("state-file"),
		Whitelist:        getStringSlice(v, "whitelist"),
		Intermediaries:   getStringSlice(v, "intermediaries"),
		PositionManager:  strings.TrimSpace(v.GetString("position-manager")),
		CLFactory:        strings.TrimSpace(v.GetString("cl-factory")),
		WithdrawerPolicy: v.GetString("withdrawer-policy"),
		FromBlock:        v.GetUint64("from-block"),
		SnapshotOut:      v.GetString("snapshot-out"),
		MetricsAddr:      v.GetString("metrics-addr"),
		FetchReceipts:    v.GetBool("fetch-receipts"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c AttributeConfig) validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if len(c.Whitelist) == 0 {
		return fmt.Errorf("whitelist is required")
	}
	if c.FetchReceipts && c.RPCURL == "" {
		return fmt.Errorf("fetch-receipts requires an rpc url")
	}
	for _, named := range []struct {
		key   string
		value string
	}{
		{"position-manager", c.PositionManager},
		{"cl-factory", c.CLFactory},
	} {
		if named.value != "" && !common.IsHexAddress(named.value) {
			return fmt.Errorf("invalid %s address: %s", named.key, named.value)
		}
	}
	return nil
}
