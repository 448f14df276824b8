// Package contract binds the fixed crowdfunding contract: its ABI, the
// historical event query source and the facade mapping domain operations
// onto the transaction executor.
package contract

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// crowdfundingABI is the consumed surface of the platform contract. The
// contract itself is external; only these methods and events are used.
const crowdfundingABI = `[
	{"type":"function","name":"createProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"fundingTarget","type":"uint256"},{"name":"profitShareBps","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"addFarmer","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"farmer","type":"address"}],"outputs":[]},
	{"type":"function","name":"invest","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"claimWithdraw","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"refundProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"claimRefund","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"closeProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"finishProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"projects","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"farmer","type":"address"},{"name":"fundingTarget","type":"uint256"},{"name":"collected","type":"uint256"},{"name":"status","type":"uint8"}]},
	{"type":"function","name":"contribution","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getAdminRequiredDeposit","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getInvestorReturn","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"},{"name":"investor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getProjectProfitBreakdown","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[{"name":"totalProfit","type":"uint256"},{"name":"adminShare","type":"uint256"},{"name":"farmerShare","type":"uint256"},{"name":"investorShare","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"event","name":"ProjectCreated","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"farmer","type":"address","indexed":true},{"name":"fundingTarget","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"FarmerAdded","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"farmer","type":"address","indexed":true}],"anonymous":false},
	{"type":"event","name":"Invested","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"tokenId","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"ProfitDeposited","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"ProfitClaimed","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"Refunded","inputs":[{"name":"projectId","type":"uint256","indexed":true},{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"ProjectClosed","inputs":[{"name":"projectId","type":"uint256","indexed":true}],"anonymous":false},
	{"type":"event","name":"ProjectFinished","inputs":[{"name":"projectId","type":"uint256","indexed":true}],"anonymous":false},
	{"type":"event","name":"ProjectRefunded","inputs":[{"name":"projectId","type":"uint256","indexed":true}],"anonymous":false}
]`

var (
	parsedABI  abi.ABI
	parseOnce  sync.Once
	parseError error
)

// ParsedABI returns the parsed contract ABI. The ABI string is a compile-time
// constant, so a parse failure is a programming error surfaced on first use.
func ParsedABI() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsedABI, parseError = abi.JSON(strings.NewReader(crowdfundingABI))
	})
	return parsedABI, parseError
}
