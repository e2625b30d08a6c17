package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// TransferTopic is the ERC20 Transfer(address,address,uint256) event id.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ReceivedAmount sums ERC20 transfers of token to recipient in logs.
func ReceivedAmount(logs []*types.Log, token, recipient common.Address) (uint64, error) {
	total := new(uint256.Int)
	for _, l := range logs {
		if l.Address != token || len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != recipient {
			continue
		}
		if _, overflow := total.AddOverflow(total, new(uint256.Int).SetBytes(l.Data)); overflow {
			return 0, fixedpoint.ErrOverflow
		}
	}
	return fixedpoint.ToUint64(total)
}
