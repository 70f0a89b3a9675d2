package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medchain-labs/medchain/go/http"
	"github.com/medchain-labs/medchain/go/internal/config"
	"github.com/medchain-labs/medchain/go/internal/idempotency"
	"github.com/medchain-labs/medchain/go/mcp"
)

func newServeCmd(wire wireFunc, v *viper.Viper) *cobra.Command {
	var withMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			server := http.NewServer(a.manager, a.gateway, a.log,
				http.WithIdempotencyStore(idempotency.NewInMemoryStore(a.cfg.HTTP.ReplayTTL)))
			if withMCP {
				sse := mcp.NewServer(a.manager, a.gateway, a.log).SSEHandler()
				server.Mount("/sse", sse)
				server.Mount("/messages", sse)
			}
			return server.Run(cmd.Context(), a.cfg.HTTP.Addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from http.addr)")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP tools over SSE on /sse")
	_ = v.BindPFlag(config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func newMCPCmd(wire wireFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewServer(a.manager, a.gateway, a.log).ServeStdio(cmd.Context())
		},
	}
}
