package attribution

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WithdrawerSource names one place a constant-product burn's withdrawer can
// come from.
type WithdrawerSource string

const (
	// WithdrawerLPSender is the address that moved LP tokens into the pool.
	WithdrawerLPSender WithdrawerSource = "lp-sender"
	// WithdrawerBurnRecipient is the `to` argument of the Burn event.
	WithdrawerBurnRecipient WithdrawerSource = "burn-recipient"
	// WithdrawerTxOrigin is the transaction signer.
	WithdrawerTxOrigin WithdrawerSource = "tx-origin"
)

// WithdrawerPolicy is the ordered list of sources consulted for a burn.
type WithdrawerPolicy []WithdrawerSource

// DefaultWithdrawerPolicy debits the LP sender first, since that is the
// address whose shares the pool destroyed.
var DefaultWithdrawerPolicy = WithdrawerPolicy{WithdrawerLPSender, WithdrawerBurnRecipient, WithdrawerTxOrigin}

// ParseWithdrawerPolicy parses a comma separated policy.
func ParseWithdrawerPolicy(value string) (WithdrawerPolicy, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultWithdrawerPolicy, nil
	}
	var out WithdrawerPolicy
	seen := make(map[WithdrawerSource]bool)
	for _, part := range strings.Split(value, ",") {
		source := WithdrawerSource(strings.ToLower(strings.TrimSpace(part)))
		switch source {
		case WithdrawerLPSender, WithdrawerBurnRecipient, WithdrawerTxOrigin:
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown withdrawer source %q", part)
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, source)
	}
	if len(out) == 0 {
		return DefaultWithdrawerPolicy, nil
	}
	return out, nil
}

func (p WithdrawerPolicy) String() string {
	parts := make([]string, 0, len(p))
	for _, source := range p {
		parts = append(parts, string(source))
	}
	return strings.Join(parts, ",")
}

// candidates orders the known addresses by the policy.
func (p WithdrawerPolicy) candidates(lpSender, burnRecipient, origin common.Address) []common.Address {
	out := make([]common.Address, 0, len(p))
	for _, source := range p {
		switch source {
		case WithdrawerLPSender:
			out = append(out, lpSender)
		case WithdrawerBurnRecipient:
			out = append(out, burnRecipient)
		case WithdrawerTxOrigin:
			out = append(out, origin)
		}
	}
	return out
}
