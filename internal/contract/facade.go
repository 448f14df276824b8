package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/models"
)

// Facade maps the platform's domain operations onto the transaction
// executor and decodes the result events from receipts. Domain services
// call these canonical names only; legacy aliases belong to the API
// boundary, not here.
type Facade struct {
	executor chain.TransactionExecutor
	abi      abi.ABI
}

// NewFacade creates a contract facade over the given executor
func NewFacade(executor chain.TransactionExecutor) (*Facade, error) {
	contractABI, err := ParsedABI()
	if err != nil {
		return nil, err
	}

	return &Facade{
		executor: executor,
		abi:      contractABI,
	}, nil
}

// ProjectView is the decoded projects mapping entry
type ProjectView struct {
	Farmer        common.Address
	FundingTarget *big.Int
	Collected     *big.Int
	Status        uint8
}

// ProfitBreakdown is the decoded profit split for a project
type ProfitBreakdown struct {
	TotalProfit   *big.Int
	AdminShare    *big.Int
	FarmerShare   *big.Int
	InvestorShare *big.Int
}

// InvestResult carries the submission outcome plus the receipt token minted
// for the investor.
type InvestResult struct {
	Outcome *models.TransactionOutcome
	TokenID *big.Int
}

// CreateProject registers a new project on-chain
func (f *Facade) CreateProject(ctx context.Context, projectID, fundingTarget, profitShareBps, deadline *big.Int) (*models.TransactionOutcome, error) {
	return f.executor.Submit(ctx, &models.TransactionRequest{
		Method: "createProject",
		Args:   []interface{}{projectID, fundingTarget, profitShareBps, deadline},
	}, nil)
}

// AddFarmer attaches a farmer wallet to a project
func (f *Facade) AddFarmer(ctx context.Context, projectID *big.Int, farmer common.Address) (*models.TransactionOutcome, error) {
	return f.executor.Submit(ctx, &models.TransactionRequest{
		Method: "addFarmer",
		Args:   []interface{}{projectID, farmer},
	}, nil)
}

// Invest submits an investment and returns the minted receipt token id
// decoded from the Invested event.
func (f *Facade) Invest(ctx context.Context, projectID, amount *big.Int) (*InvestResult, error) {
	outcome, err := f.executor.Submit(ctx, &models.TransactionRequest{
		Method: "invest",
		Args:   []interface{}{projectID, amount},
	}, nil)
	if err != nil {
		return nil, err
	}

	result := &InvestResult{Outcome: outcome}

	args, err := f.DecodeReceiptEvent(outcome.Receipt, models.EventInvested)
	if err != nil {
		return nil, fmt.Errorf("invest confirmed but event decode failed: %w", err)
	}
	if tokenID, ok := args["tokenId"].(*big.Int); ok {
		result.TokenID = tokenID
	}

	return result, nil
}

// WithdrawProject lets the farmer withdraw collected funds
func (f *Facade) WithdrawProject(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "withdrawProject", projectID)
}

// ClaimWithdraw claims the investor's profit share
func (f *Facade) ClaimWithdraw(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "claimWithdraw", projectID)
}

// RefundProject opens a project for refunds
func (f *Facade) RefundProject(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "refundProject", projectID)
}

// ClaimRefund claims the investor's refund
func (f *Facade) ClaimRefund(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "claimRefund", projectID)
}

// CloseProject closes funding for a project
func (f *Facade) CloseProject(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "closeProject", projectID)
}

// FinishProject marks a project finished after profit distribution
func (f *Facade) FinishProject(ctx context.Context, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.submitSimple(ctx, "finishProject", projectID)
}

func (f *Facade) submitSimple(ctx context.Context, method string, projectID *big.Int) (*models.TransactionOutcome, error) {
	return f.executor.Submit(ctx, &models.TransactionRequest{
		Method: method,
		Args:   []interface{}{projectID},
	}, nil)
}

// Project reads the projects mapping
func (f *Facade) Project(ctx context.Context, projectID *big.Int) (*ProjectView, error) {
	out, err := f.executor.Call(ctx, "projects", projectID)
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected projects result arity %d", len(out))
	}

	view := &ProjectView{}
	var ok bool
	if view.Farmer, ok = out[0].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected farmer type %T", out[0])
	}
	if view.FundingTarget, ok = out[1].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected fundingTarget type %T", out[1])
	}
	if view.Collected, ok = out[2].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected collected type %T", out[2])
	}
	if view.Status, ok = out[3].(uint8); !ok {
		return nil, fmt.Errorf("unexpected status type %T", out[3])
	}

	return view, nil
}

// Contribution reads an investor's contribution to a project
func (f *Facade) Contribution(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return f.callBigInt(ctx, "contribution", projectID, investor)
}

// AdminRequiredDeposit reads the deposit the admin must escrow for a project
func (f *Facade) AdminRequiredDeposit(ctx context.Context, projectID *big.Int) (*big.Int, error) {
	return f.callBigInt(ctx, "getAdminRequiredDeposit", projectID)
}

// InvestorReturn reads the return owed to an investor
func (f *Facade) InvestorReturn(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return f.callBigInt(ctx, "getInvestorReturn", projectID, investor)
}

// ProfitBreakdown reads the project's profit split
func (f *Facade) ProfitBreakdown(ctx context.Context, projectID *big.Int) (*ProfitBreakdown, error) {
	out, err := f.executor.Call(ctx, "getProjectProfitBreakdown", projectID)
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected profit breakdown arity %d", len(out))
	}

	breakdown := &ProfitBreakdown{}
	values := []**big.Int{&breakdown.TotalProfit, &breakdown.AdminShare, &breakdown.FarmerShare, &breakdown.InvestorShare}
	for i, target := range values {
		value, ok := out[i].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected profit breakdown element %d type %T", i, out[i])
		}
		*target = value
	}

	return breakdown, nil
}

// TokenURI reads the metadata URI of a receipt token
func (f *Facade) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := f.executor.Call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", fmt.Errorf("unexpected tokenURI result arity %d", len(out))
	}

	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected tokenURI type %T", out[0])
	}
	return uri, nil
}

func (f *Facade) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := f.executor.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected %s result arity %d", method, len(out))
	}

	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return value, nil
}

// DecodeReceiptEvent finds the first log for the named event in the receipt
// and returns its decoded arguments.
func (f *Facade) DecodeReceiptEvent(receipt *ethtypes.Receipt, eventName string) (map[string]interface{}, error) {
	event, ok := f.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventName)
	}

	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}

		args := make(map[string]interface{})
		if err := f.abi.UnpackIntoMap(args, event.Name, log.Data); err != nil {
			return nil, err
		}

		var indexed abi.Arguments
		for _, input := range event.Inputs {
			if input.Indexed {
				indexed = append(indexed, input)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
				return nil, err
			}
		}

		return args, nil
	}

	return nil, fmt.Errorf("receipt has no %s event", eventName)
}
