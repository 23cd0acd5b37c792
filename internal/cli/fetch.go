package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/transport"
)

var (
	fetchBody  string
	fetchForce bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [method] [path]",
	Short: "Execute one request through the resilient transport",
	Example: `  shiftfetch fetch GET /users/me
  shiftfetch fetch POST /orders --body '{"sku":"abc","qty":1}'`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchBody, "body", "", "JSON request body")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "bypass cached failures")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	d, err := descriptorFromArgs(args[0], args[1], fetchBody)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	resp, err := app.Transport().Execute(ctx, d, transport.ForceRefetch(fetchForce))
	if err != nil {
		return printFailure(cmd, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(resp.Body))
	return nil
}

// descriptorFromArgs builds a descriptor. A plain GET without body stays a bare path.
func descriptorFromArgs(method, path, body string) (domain.RequestDescriptor, error) {
	method = strings.ToUpper(method)
	d := domain.RequestDescriptor{Method: method, Path: path}
	if method == "GET" && body == "" {
		return domain.Get(path), nil
	}
	if body != "" {
		if !json.Valid([]byte(body)) {
			return domain.RequestDescriptor{}, fmt.Errorf("--body is not valid JSON")
		}
		d.Body = json.RawMessage(body)
	}
	return d, nil
}

func printFailure(cmd *cobra.Command, err error) error {
	cerr, ok := domain.AsClassified(err)
	if !ok {
		return err
	}
	if len(cerr.Payload) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), prettyJSON(cerr.Payload))
	}
	return fmt.Errorf("request failed: %s", cerr.Label())
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
