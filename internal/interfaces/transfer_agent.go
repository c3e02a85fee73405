package interfaces

import (
	"context"

	"github.com/holiman/uint256"
)

// TransferAgent is the push-transfer primitive supplied by the environment:
// it attempts to deliver value to a principal and reports success or failure.
// An implementation may call back into the vault before returning, which is
// exactly the reentrancy hazard the vault's withdrawal guard defends against.
type TransferAgent interface {
	Transfer(ctx context.Context, principal string, amount *uint256.Int) error
}
