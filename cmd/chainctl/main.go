// Package main provides an operator CLI for submitting crowdfunding
// contract transactions and reading contract state. Amounts are given in
// whole tokens and converted to base units before submission.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/config"
	"github.com/stomatrade/chain-sync/internal/contract"
	"github.com/stomatrade/chain-sync/internal/models"
	"github.com/stomatrade/chain-sync/internal/retry"
)

func main() {
	var (
		op       = flag.String("op", "", "Operation: create-project, add-farmer, invest, withdraw-project, claim-withdraw, refund-project, claim-refund, close-project, finish-project, project, contribution, investor-return, profit-breakdown, admin-deposit, token-uri")
		project  = flag.Int64("project", 0, "Project ID")
		token    = flag.Int64("token", 0, "Receipt token ID (token-uri)")
		amount   = flag.String("amount", "", "Token amount, decimal (invest, create-project target)")
		wallet   = flag.String("wallet", "", "Wallet address (add-farmer, contribution, investor-return)")
		bps      = flag.Int64("profit-bps", 0, "Profit share in basis points (create-project)")
		deadline = flag.Int64("deadline", 0, "Funding deadline, unix seconds (create-project)")
		timeout  = flag.Duration("timeout", 5*time.Minute, "Overall operation timeout")
	)
	flag.Parse()

	if *op == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	provider, err := chain.NewChainProvider(ctx, &cfg.Chain, cfg.Executor.ReceiptTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to chain RPC: %v", err)
	}
	defer provider.Close()

	signer, err := chain.NewWalletSigner(cfg.Chain.SignerKey, provider)
	if err != nil {
		log.Fatalf("Failed to load signer key: %v", err)
	}
	signer.CheckFunding(ctx, cfg.Chain.MinWalletWei)

	contractABI, err := contract.ParsedABI()
	if err != nil {
		log.Fatalf("Failed to parse contract ABI: %v", err)
	}

	executor, err := chain.NewExecutor(&chain.ExecutorConfig{
		Contract:        common.HexToAddress(cfg.Chain.ContractAddress),
		ABI:             contractABI,
		Backend:         provider,
		Submitter:       signer,
		Policy:          retry.Policy{MaxAttempts: cfg.Executor.MaxRetries, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0},
		GasSafetyFactor: cfg.Executor.GasSafetyFactor,
	})
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	facade, err := contract.NewFacade(executor)
	if err != nil {
		log.Fatalf("Failed to create contract facade: %v", err)
	}

	if err := run(ctx, facade, *op, *project, *token, *amount, *wallet, *bps, *deadline); err != nil {
		log.Fatalf("Operation %s failed: %v", *op, err)
	}
}

func run(ctx context.Context, facade *contract.Facade, op string, project, token int64, amount, wallet string, bps, deadline int64) error {
	projectID := big.NewInt(project)

	switch op {
	case "create-project":
		target, err := parseAmount(amount)
		if err != nil {
			return err
		}
		outcome, err := facade.CreateProject(ctx, projectID, target, big.NewInt(bps), big.NewInt(deadline))
		if err != nil {
			return err
		}
		printOutcome(outcome)

	case "add-farmer":
		if !common.IsHexAddress(wallet) {
			return fmt.Errorf("invalid farmer address %q", wallet)
		}
		outcome, err := facade.AddFarmer(ctx, projectID, common.HexToAddress(wallet))
		if err != nil {
			return err
		}
		printOutcome(outcome)

	case "invest":
		tokens, err := parseAmount(amount)
		if err != nil {
			return err
		}
		result, err := facade.Invest(ctx, projectID, tokens)
		if err != nil {
			return err
		}
		printOutcome(result.Outcome)
		if result.TokenID != nil {
			fmt.Printf("receipt token: %s\n", result.TokenID)
		}

	case "withdraw-project", "claim-withdraw", "refund-project", "claim-refund", "close-project", "finish-project":
		outcome, err := submitSimple(ctx, facade, op, projectID)
		if err != nil {
			return err
		}
		printOutcome(outcome)

	case "project":
		view, err := facade.Project(ctx, projectID)
		if err != nil {
			return err
		}
		fmt.Printf("farmer: %s\ntarget: %s\ncollected: %s\nstatus: %d\n",
			view.Farmer.Hex(), models.FromBaseUnits(view.FundingTarget), models.FromBaseUnits(view.Collected), view.Status)

	case "contribution":
		if !common.IsHexAddress(wallet) {
			return fmt.Errorf("invalid investor address %q", wallet)
		}
		value, err := facade.Contribution(ctx, projectID, common.HexToAddress(wallet))
		if err != nil {
			return err
		}
		fmt.Printf("contribution: %s\n", models.FromBaseUnits(value))

	case "investor-return":
		if !common.IsHexAddress(wallet) {
			return fmt.Errorf("invalid investor address %q", wallet)
		}
		value, err := facade.InvestorReturn(ctx, projectID, common.HexToAddress(wallet))
		if err != nil {
			return err
		}
		fmt.Printf("investor return: %s\n", models.FromBaseUnits(value))

	case "profit-breakdown":
		breakdown, err := facade.ProfitBreakdown(ctx, projectID)
		if err != nil {
			return err
		}
		fmt.Printf("total: %s\nadmin: %s\nfarmer: %s\ninvestors: %s\n",
			models.FromBaseUnits(breakdown.TotalProfit),
			models.FromBaseUnits(breakdown.AdminShare),
			models.FromBaseUnits(breakdown.FarmerShare),
			models.FromBaseUnits(breakdown.InvestorShare))

	case "admin-deposit":
		value, err := facade.AdminRequiredDeposit(ctx, projectID)
		if err != nil {
			return err
		}
		fmt.Printf("required deposit: %s\n", models.FromBaseUnits(value))

	case "token-uri":
		uri, err := facade.TokenURI(ctx, big.NewInt(token))
		if err != nil {
			return err
		}
		fmt.Printf("token uri: %s\n", uri)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	return nil
}

func submitSimple(ctx context.Context, facade *contract.Facade, op string, projectID *big.Int) (*models.TransactionOutcome, error) {
	switch op {
	case "withdraw-project":
		return facade.WithdrawProject(ctx, projectID)
	case "claim-withdraw":
		return facade.ClaimWithdraw(ctx, projectID)
	case "refund-project":
		return facade.RefundProject(ctx, projectID)
	case "claim-refund":
		return facade.ClaimRefund(ctx, projectID)
	case "close-project":
		return facade.CloseProject(ctx, projectID)
	case "finish-project":
		return facade.FinishProject(ctx, projectID)
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}

func parseAmount(amount string) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, err := models.ToBaseUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return value, nil
}

func printOutcome(outcome *models.TransactionOutcome) {
	fmt.Printf("tx: %s\nblock: %d\ngas used: %d\nattempts: %d\n",
		outcome.Hash, outcome.BlockNumber, outcome.GasUsed, outcome.Attempts)
}
