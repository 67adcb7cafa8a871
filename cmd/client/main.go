package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8080", "The server base URL")
	timeout    = flag.Duration("timeout", 30*time.Second, "Request timeout")
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := newAPIClient(*serverAddr, nil)
	if err := runCommand(ctx, client, os.Stdout, flag.Args()); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Command failed")
	}
}

// apiError is the error body returned by the server
type apiError struct {
	Status  int
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// apiClient calls the dispatcher HTTP API
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, httpClient *http.Client) *apiClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &apiClient{base: strings.TrimRight(base, "/"), http: httpClient}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func deskPath(desk, path string) string {
	return "/desks/" + desk + path
}

type order struct {
	ID        int    `json:"id"`
	Priority  int    `json:"priority"`
	CourierID *int   `json:"courier_id"`
	Address   string `json:"address"`
}

type deskInfo struct {
	Name       string    `json:"name"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"created_at"`
	OrderCount int       `json:"order_count"`
}

// optionFlags collects repeated -option key=value flags
type optionFlags map[string]string

func (o optionFlags) String() string {
	parts := make([]string, 0, len(o))
	for k, v := range o {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (o optionFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("option %q must be key=value", value)
	}
	o[key] = val
	return nil
}

var errUsage = errors.New("invalid usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func intArg(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, usageError("%s must be an integer, got %q", name, value)
	}
	return n, nil
}

// runCommand executes one client subcommand and prints its result to w
func runCommand(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	command, rest := args[0], args[1:]

	switch command {
	case "create-desk":
		return createDesk(ctx, c, w, rest)
	case "list-desks":
		return listDesks(ctx, c, w)
	case "delete-desk":
		if len(rest) != 1 {
			return usageError("delete-desk <name>")
		}
		if err := c.do(ctx, http.MethodDelete, "/desks/"+rest[0], nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted desk %s\n", rest[0])
		return nil
	case "generate":
		return generate(ctx, c, w, rest)
	case "add-order":
		return addOrder(ctx, c, w, rest)
	case "list-orders":
		if len(rest) != 1 {
			return usageError("list-orders <desk>")
		}
		var resp struct {
			Orders      []order `json:"orders"`
			TotalOrders int     `json:"total_orders"`
		}
		if err := c.do(ctx, http.MethodGet, deskPath(rest[0], "/orders"), nil, &resp); err != nil {
			return err
		}
		fmt.Fprintf(w, "Orders: %d\n", resp.TotalOrders)
		return printOrders(w, resp.Orders)
	case "search-linear":
		return searchLinear(ctx, c, w, rest)
	case "search-binary":
		return searchBinary(ctx, c, w, rest)
	case "sort-bubble":
		return sortOrders(ctx, c, w, rest, "bubble")
	case "sort-insertion":
		return sortOrders(ctx, c, w, rest, "insertion")
	case "compare":
		return compareAlgorithms(ctx, c, w)
	default:
		return usageError("unknown command %q", command)
	}
}

func createDesk(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("create-desk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backend := fs.String("backend", "memory", "Backend type (memory, redis or postgres)")
	options := optionFlags{}
	fs.Var(options, "option", "Backend option key=value, may be repeated")
	if err := fs.Parse(args); err != nil {
		return usageError("%v", err)
	}
	if fs.NArg() != 1 {
		return usageError("create-desk [-backend=memory|redis|postgres] [-option key=value] <name>")
	}

	var info deskInfo
	body := map[string]any{"name": fs.Arg(0), "backend": *backend, "options": map[string]string(options)}
	if err := c.do(ctx, http.MethodPost, "/desks", body, &info); err != nil {
		return err
	}

	fmt.Fprintf(w, "Created desk %s (%s)\n", info.Name, info.Backend)
	return nil
}

func listDesks(ctx context.Context, c *apiClient, w io.Writer) error {
	var resp struct {
		Desks []deskInfo `json:"desks"`
	}
	if err := c.do(ctx, http.MethodGet, "/desks", nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cyan("NAME"), cyan("BACKEND"), cyan("ORDERS"), cyan("CREATED"))
	for _, d := range resp.Desks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Name, d.Backend, d.OrderCount, d.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func generate(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	if len(args) != 2 {
		return usageError("generate <desk> <count>")
	}
	count, err := intArg("count", args[1])
	if err != nil {
		return err
	}

	var resp struct {
		Message     string `json:"message"`
		TotalOrders int    `json:"total_orders"`
	}
	if err := c.do(ctx, http.MethodPost, deskPath(args[0], "/orders/generate"), map[string]int{"count": count}, &resp); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (total %d)\n", resp.Message, resp.TotalOrders)
	return nil
}

func addOrder(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("add-order", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	courier := fs.Int("courier", 0, "Courier id, 0 leaves the order unassigned")
	address := fs.String("address", "", "Delivery address")
	if err := fs.Parse(args); err != nil {
		return usageError("%v", err)
	}
	if fs.NArg() != 3 {
		return usageError("add-order [-courier=N] [-address=S] <desk> <id> <priority>")
	}

	id, err := intArg("id", fs.Arg(1))
	if err != nil {
		return err
	}
	priority, err := intArg("priority", fs.Arg(2))
	if err != nil {
		return err
	}

	body := map[string]any{"id": id, "priority": priority, "address": *address}
	if *courier != 0 {
		body["courier_id"] = *courier
	}

	var created order
	if err := c.do(ctx, http.MethodPost, deskPath(fs.Arg(0), "/orders"), body, &created); err != nil {
		return err
	}

	fmt.Fprintf(w, "Added order %d\n", created.ID)
	return nil
}

func searchLinear(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	if len(args) != 2 {
		return usageError("search-linear <desk> <courier>")
	}
	courier, err := intArg("courier", args[1])
	if err != nil {
		return err
	}

	var resp struct {
		Results      []order `json:"results"`
		Steps        int     `json:"steps"`
		TotalResults int     `json:"total_results"`
	}
	if err := c.do(ctx, http.MethodPost, deskPath(args[0], "/search/linear"), map[string]int{"courier_id": courier}, &resp); err != nil {
		return err
	}

	fmt.Fprintf(w, "Linear search for courier %d: %d orders in %d steps\n", courier, resp.TotalResults, resp.Steps)
	return printOrders(w, resp.Results)
}

func searchBinary(ctx context.Context, c *apiClient, w io.Writer, args []string) error {
	if len(args) != 2 {
		return usageError("search-binary <desk> <id>")
	}
	id, err := intArg("id", args[1])
	if err != nil {
		return err
	}

	var resp struct {
		Result *order `json:"result"`
		Found  bool   `json:"found"`
		Steps  int    `json:"steps"`
	}
	if err := c.do(ctx, http.MethodPost, deskPath(args[0], "/search/binary"), map[string]int{"order_id": id}, &resp); err != nil {
		return err
	}

	if !resp.Found {
		fmt.Fprintf(w, "Binary search for order %d: not found in %d steps\n", id, resp.Steps)
		return nil
	}
	fmt.Fprintf(w, "Binary search for order %d: found in %d steps\n", id, resp.Steps)
	return printOrders(w, []order{*resp.Result})
}

func sortOrders(ctx context.Context, c *apiClient, w io.Writer, args []string, algorithm string) error {
	if len(args) != 1 {
		return usageError("sort-%s <desk>", algorithm)
	}

	var resp struct {
		SortedOrders []order `json:"sorted_orders"`
		Steps        int     `json:"steps"`
		TotalOrders  int     `json:"total_orders"`
	}
	if err := c.do(ctx, http.MethodPost, deskPath(args[0], "/sort/"+algorithm), nil, &resp); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s sort of %d orders: %d steps\n", strings.ToUpper(algorithm[:1])+algorithm[1:], resp.TotalOrders, resp.Steps)
	return printOrders(w, resp.SortedOrders)
}

func compareAlgorithms(ctx context.Context, c *apiClient, w io.Writer) error {
	var report struct {
		Results []struct {
			Size   int `json:"size"`
			Bubble struct {
				Steps  int `json:"steps"`
				Timing struct {
					MeanMicros float64 `json:"mean_micros"`
				} `json:"timing"`
			} `json:"bubble"`
			Insertion struct {
				Steps  int `json:"steps"`
				Timing struct {
					MeanMicros float64 `json:"mean_micros"`
				} `json:"timing"`
			} `json:"insertion"`
			LinearSteps   int             `json:"linear_steps"`
			BinarySteps   int             `json:"binary_steps"`
			SortStepRatio json.RawMessage `json:"sort_step_ratio"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/compare", nil, &report); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Size\tLinear\tBinary\tBubble\tInsertion\tRatio\tBubble µs\tInsertion µs\t")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t%.1f\t%.1f\t\n",
			r.Size, r.LinearSteps, r.BinarySteps, r.Bubble.Steps, r.Insertion.Steps,
			strings.Trim(string(r.SortStepRatio), `"`),
			r.Bubble.Timing.MeanMicros, r.Insertion.Timing.MeanMicros)
	}
	return tw.Flush()
}

func priorityLabel(p int) string {
	switch p {
	case 1:
		return color.New(color.FgRed).Sprint("HIGH")
	case 2:
		return color.New(color.FgYellow).Sprint("MEDIUM")
	case 3:
		return color.New(color.FgGreen).Sprint("LOW")
	default:
		return strconv.Itoa(p)
	}
}

func printOrders(w io.Writer, orders []order) error {
	if len(orders) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tCOURIER\tADDRESS")
	for _, o := range orders {
		courier := "-"
		if o.CourierID != nil {
			courier = strconv.Itoa(*o.CourierID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.ID, priorityLabel(o.Priority), courier, o.Address)
	}
	return tw.Flush()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: client [-addr=URL] <command> [args]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  create-desk [-backend=memory|redis|postgres] [-option key=value] <name>")
	fmt.Fprintln(w, "  list-desks")
	fmt.Fprintln(w, "  delete-desk <name>")
	fmt.Fprintln(w, "  generate <desk> <count>")
	fmt.Fprintln(w, "  add-order [-courier=N] [-address=S] <desk> <id> <priority>")
	fmt.Fprintln(w, "  list-orders <desk>")
	fmt.Fprintln(w, "  search-linear <desk> <courier>")
	fmt.Fprintln(w, "  search-binary <desk> <id>")
	fmt.Fprintln(w, "  sort-bubble <desk>")
	fmt.Fprintln(w, "  sort-insertion <desk>")
	fmt.Fprintln(w, "  compare")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  create-desk -backend=redis -option addr=localhost:6379 east")
	fmt.Fprintln(w, "  generate default 100")
	fmt.Fprintln(w, "  add-order -courier=150 -address='Street 4' default 101 1")
	fmt.Fprintln(w, "  search-linear default 150")
	fmt.Fprintln(w, "  sort-insertion default")
}
