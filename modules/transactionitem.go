package modules

import (
	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/types"
)

// TransactionItemAmount is the narrow downward contract an input handler
// returns to the surrounding federation transaction (spec §1, §6): "a
// transaction-item abstraction {amount, fee} and a pub_key attribution
// returned from input processing". The enclosing consensus layer is
// responsible for actually crediting/debiting ecash; this module only
// ever reports how much and to whom.
type TransactionItemAmount struct {
	Amount types.Msat
	Fee    types.Msat
}

// InputAttribution names the single key that authorizes an input, used by
// the surrounding consensus to attribute withdrawn ecash (spec §4.6,
// UnlockForWithdrawal/Withdrawal: "its pub_key is the sole account key").
type InputAttribution struct {
	PubKey crypto.PublicKey
}
