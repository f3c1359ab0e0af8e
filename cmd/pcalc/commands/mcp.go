package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/mcpserver"
	"github.com/openfroyo/pocketcalc/pkg/session"
)

func newMCPCommand() *cobra.Command {
	var (
		port      int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the calculator over the Model Context Protocol",
		Long: `Serve one calculator to MCP clients. All clients share the same
calculator state.

Tools:
  press_keys        press a key sequence, returns display and memory indicator
  calculator_state  full calculator state as JSON
  clear_all         clear input and operands, keeping memory
  reset             reset everything, memory included

The calculator://state resource holds the same JSON as calculator_state.
Clients are sent notifications/resources/updated whenever the display or the
memory indicator changes.

Without --port the server speaks MCP over standard input and output; logs
go to standard error. With --port it serves streamable HTTP.`,
		Example: `  # stdio, for clients that launch the server
  pcalc mcp

  # HTTP on port 8090
  pcalc mcp --port 8090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			var opts []session.Option
			if sessionID != "" {
				opts = append(opts, session.WithID(sessionID))
			}
			sess := session.New(ctx, a.tel, nil, opts...)
			defer sess.Close()

			srv := mcpserver.New(sess, buildVersion, *a.tel.Logger.Zerolog())
			if port == 0 {
				return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
			}
			return srv.ServeHTTP(ctx, fmt.Sprintf(":%d", port))
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "TCP port for streamable HTTP (0 for stdio)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session ID for logs, spans and events (default: random)")

	return cmd
}
