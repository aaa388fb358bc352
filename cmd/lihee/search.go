package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	searchv1 "github.com/yourusername/lihee-search/pkg/api/searchv1"
	"github.com/yourusername/lihee-search/pkg/api/searchv1/searchv1connect"
)

func newSearchCmd() *cobra.Command {
	var (
		addr    string
		useGRPC bool
	)

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Stream matching books as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")

			httpClient := http.DefaultClient
			var opts []connect.ClientOption
			if useGRPC {
				httpClient = h2cClient()
				opts = append(opts, connect.WithGRPC())
			}
			client := searchv1connect.NewSearchClient(httpClient, addr, opts...)

			stream, err := client.GetBooks(cmd.Context(), connect.NewRequest(&searchv1.GetBooksPayload{Keyword: keyword}))
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			defer stream.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for stream.Receive() {
				if err := enc.Encode(stream.Msg()); err != nil {
					return err
				}
				n++
			}
			if err := stream.Err(); err != nil {
				var cerr *connect.Error
				if errors.As(err, &cerr) && cerr.Code() == connect.CodeInvalidArgument {
					return fmt.Errorf("rejected: %s", cerr.Message())
				}
				return fmt.Errorf("search stream broke after %d books: %w", n, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:56923", "gateway base URL")
	cmd.Flags().BoolVar(&useGRPC, "grpc", false, "use the gRPC protocol over h2c instead of Connect")
	return cmd
}
