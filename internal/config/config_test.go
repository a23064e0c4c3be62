package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadAttributeMergesFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	yaml := `in: ./data/logs.jsonl
whitelist:
  - "0xA0D736dD7386230De3aA2e6b4f60d36a5Ded2291"
  - "0x40a8E39ABA67debEDab94F76D21114AB39909C5a"
intermediaries: "0x0000000000000000000000000000000000000e01, 0x0000000000000000000000000000000000000e02"
position-manager: "0x827922686190790b37229fd06084350E74485b72"
batch-size: 50
`
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INDEXER_FROM_BLOCK", "1200")

	flags := pflag.NewFlagSet("attribute", pflag.ContinueOnError)
	flags.Uint64("batch-size", 1000, "")
	flags.String("withdrawer-policy", "lp-sender,burn-recipient,tx-origin", "")
	if err := flags.Parse([]string{"--withdrawer-policy=burn-recipient,lp-sender"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadAttribute(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Whitelist) != 2 {
		t.Fatalf("expected 2 whitelist entries, got %v", cfg.Whitelist)
	}
	if len(cfg.Intermediaries) != 2 || cfg.Intermediaries[1] != "0x0000000000000000000000000000000000000e02" {
		t.Fatalf("intermediaries mismatch: %v", cfg.Intermediaries)
	}
	if cfg.FlushBlocks != 50 {
		t.Fatalf("expected batch size from file, got %d", cfg.FlushBlocks)
	}
	if cfg.FromBlock != 1200 {
		t.Fatalf("expected from block from env, got %d", cfg.FromBlock)
	}
	if cfg.WithdrawerPolicy != "burn-recipient,lp-sender" {
		t.Fatalf("expected policy from flag, got %s", cfg.WithdrawerPolicy)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %s", cfg.LogLevel)
	}
}

func TestLoadAttributeValidates(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing whitelist": "in: logs.jsonl\n",
		"missing input":     "whitelist: \"0xA0D736dD7386230De3aA2e6b4f60d36a5Ded2291\"\n",
		"bad manager":       "in: logs.jsonl\nwhitelist: \"0xA0D736dD7386230De3aA2e6b4f60d36a5Ded2291\"\nposition-manager: nope\n",
		"receipts no rpc":   "in: logs.jsonl\nwhitelist: \"0xA0D736dD7386230De3aA2e6b4f60d36a5Ded2291\"\nfetch-receipts: true\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadAttribute(path, nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 2000 || !cfg.ResolveOrigin || !cfg.CheckpointEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	decodeCfg, err := LoadDecode("", nil)
	if err != nil {
		t.Fatalf("load decode: %v", err)
	}
	if decodeCfg.Out != "./data/typed_events.jsonl" || len(decodeCfg.Topic0Map) != 0 {
		t.Fatalf("unexpected decode defaults: %+v", decodeCfg)
	}
}

func TestParseStringMap(t *testing.T) {
	got := parseStringMap("0xabc=transfer, bad, =x, 0xdef = burn")
	if len(got) != 2 || got["0xabc"] != "transfer" || got["0xdef"] != "burn" {
		t.Fatalf("unexpected map: %v", got)
	}
}
