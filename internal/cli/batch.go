package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	medchain "github.com/medchain-labs/medchain/go"
)

// connect establishes the session the batch commands run under.
func (a *app) connect(cmd *cobra.Command) error {
	if err := a.manager.Connect(cmd.Context()); err != nil {
		return a.outcomeError(medchain.OpConnect, 0, err)
	}
	return nil
}

func (a *app) outcomeError(op medchain.Operation, batchNumber uint64, err error) error {
	message := medchain.DescribeOutcome(op, err, batchNumber, a.manager.Network().ChainName).Message
	return fmt.Errorf("%s: %w", message, err)
}

func (a *app) printOutcome(cmd *cobra.Command, op medchain.Operation, batchNumber uint64) {
	message := medchain.DescribeOutcome(op, nil, batchNumber, a.manager.Network().ChainName).Message
	fmt.Fprintln(cmd.OutOrStdout(), message)
}

// batchCommand runs fn inside a connected session.
func batchCommand(wire wireFunc, fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := wire(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.connect(cmd); err != nil {
			return err
		}
		return fn(cmd, a)
	}
}

func newRegisterCmd(wire wireFunc) *cobra.Command {
	var name, batch, manufacturer string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new medicine batch",
		RunE: batchCommand(wire, func(cmd *cobra.Command, a *app) error {
			batchNumber, err := medchain.ParseBatchNumber(batch)
			if err != nil {
				return a.outcomeError(medchain.OpRegisterBatch, 0, err)
			}
			receipt, err := a.gateway.RegisterBatch(cmd.Context(), name, batchNumber, manufacturer)
			if err != nil {
				return a.outcomeError(medchain.OpRegisterBatch, batchNumber, err)
			}
			a.printOutcome(cmd, medchain.OpRegisterBatch, batchNumber)
			fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", receipt.Hash)
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "medicine name")
	cmd.Flags().StringVar(&batch, "batch", "", "batch number")
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "manufacturer name")
	return cmd
}

func newTransferCmd(wire wireFunc) *cobra.Command {
	var batch, holder string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer a medicine batch to a new holder",
		RunE: batchCommand(wire, func(cmd *cobra.Command, a *app) error {
			batchNumber, err := medchain.ParseBatchNumber(batch)
			if err != nil {
				return a.outcomeError(medchain.OpTransferBatch, 0, err)
			}
			receipt, err := a.gateway.TransferBatch(cmd.Context(), batchNumber, holder)
			if err != nil {
				return a.outcomeError(medchain.OpTransferBatch, batchNumber, err)
			}
			a.printOutcome(cmd, medchain.OpTransferBatch, batchNumber)
			fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", receipt.Hash)
			return nil
		}),
	}

	cmd.Flags().StringVar(&batch, "batch", "", "batch number")
	cmd.Flags().StringVar(&holder, "to", "", "new holder address")
	return cmd
}

func newDeliverCmd(wire wireFunc) *cobra.Command {
	var batch string

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Confirm delivery of a medicine batch",
		RunE: batchCommand(wire, func(cmd *cobra.Command, a *app) error {
			batchNumber, err := medchain.ParseBatchNumber(batch)
			if err != nil {
				return a.outcomeError(medchain.OpConfirmDeliver, 0, err)
			}
			receipt, err := a.gateway.ConfirmDelivery(cmd.Context(), batchNumber)
			if err != nil {
				return a.outcomeError(medchain.OpConfirmDeliver, batchNumber, err)
			}
			a.printOutcome(cmd, medchain.OpConfirmDeliver, batchNumber)
			fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", receipt.Hash)
			return nil
		}),
	}

	cmd.Flags().StringVar(&batch, "batch", "", "batch number")
	return cmd
}

func newLookupCmd(wire wireFunc) *cobra.Command {
	var (
		batch  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up a medicine batch",
		RunE: batchCommand(wire, func(cmd *cobra.Command, a *app) error {
			batchNumber, err := medchain.ParseBatchNumber(batch)
			if err != nil {
				return a.outcomeError(medchain.OpLookupBatch, 0, err)
			}
			record, err := a.gateway.LookupBatch(cmd.Context(), batchNumber)
			if err != nil {
				return a.outcomeError(medchain.OpLookupBatch, batchNumber, err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			}

			out := cmd.OutOrStdout()
			a.printOutcome(cmd, medchain.OpLookupBatch, batchNumber)
			fmt.Fprintf(out, "batch:        %d\n", record.BatchNumber)
			fmt.Fprintf(out, "name:         %s\n", record.Name)
			fmt.Fprintf(out, "manufacturer: %s\n", record.Manufacturer)
			fmt.Fprintf(out, "holder:       %s\n", record.CurrentHolder)
			fmt.Fprintf(out, "delivered:    %t\n", record.IsDelivered)
			return nil
		}),
	}

	cmd.Flags().StringVar(&batch, "batch", "", "batch number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
