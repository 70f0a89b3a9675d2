package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type statusView struct {
	State             string `json:"state"`
	Account           string `json:"account,omitempty"`
	ProviderAvailable bool   `json:"providerAvailable"`
	ChainID           string `json:"chainId"`
	ChainName         string `json:"chainName"`
	Contract          string `json:"contract"`
}

func newStatusCmd(wire wireFunc) *cobra.Command {
	var (
		connect bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show wallet provider and session status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if connect {
				if err := a.connect(cmd); err != nil {
					return err
				}
			}

			snap := a.manager.Snapshot()
			network := a.manager.Network()
			view := statusView{
				State:             snap.State.String(),
				Account:           snap.Account,
				ProviderAvailable: a.manager.IsProviderAvailable(),
				ChainID:           network.ChainIDHex(),
				ChainName:         network.ChainName,
				Contract:          a.cfg.Contract.Address,
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %t\n", view.ProviderAvailable)
			fmt.Fprintf(out, "network:  %s (%s)\n", view.ChainName, view.ChainID)
			fmt.Fprintf(out, "contract: %s\n", view.Contract)
			fmt.Fprintf(out, "state:    %s\n", view.State)
			if view.Account != "" {
				fmt.Fprintf(out, "account:  %s\n", view.Account)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "connect the wallet before reporting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
