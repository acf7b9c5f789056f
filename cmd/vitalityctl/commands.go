package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vitality/internal/adapters/planner"
	"vitality/internal/adapters/spreadsheet"
	"vitality/internal/application/orchestrators"
	"vitality/internal/config"
	"vitality/internal/domain/member"
)

// Replaced in tests.
var (
	stdout         io.Writer = os.Stdout
	userConfigPath           = config.UserConfigPath
	getenv                   = os.Getenv
)

const (
	defaultTimeout  = 30 * time.Second
	generateTimeout = 5 * time.Minute
)

// plannerFlags are shared by every command that calls the planner.
type plannerFlags struct {
	apiBase string
	timeout time.Duration
}

func newFlagSet(name string, defTimeout time.Duration) (*flag.FlagSet, *plannerFlags) {
	pf := &plannerFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&pf.apiBase, "api-base", "", "Planner API base for this call")
	fs.DurationVar(&pf.timeout, "timeout", defTimeout, "Give up after this long")
	return fs, pf
}

// resolveBase returns the base URL provider with precedence
// -api-base flag > config.yaml override > environment > builtin.
func resolveBase(flagBase string, user *config.UserConfig) (*config.BaseURL, error) {
	envBase := getenv(config.EnvAPIBase)
	if envBase == "" {
		envBase = getenv(config.EnvPublicAPIBase)
	}
	base := config.NewBaseURL(envBase, user.APIBase)
	if flagBase != "" {
		if err := base.SetOverride(flagBase); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func loadUserConfig() (*config.UserConfig, string, error) {
	path, err := userConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadUser(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newClient(pf *plannerFlags) (*planner.Client, error) {
	user, _, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	base, err := resolveBase(pf.apiBase, user)
	if err != nil {
		return nil, err
	}
	// FITNESS_API_KEY belongs to the server's FITNESS_API_URL upstream and is
	// never sent to the CLI's base; only the key saved next to it is.
	return planner.New(base, planner.WithAPIKey(user.APIKey)), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns planner errors into one readable line.
func explain(err error) error {
	var se *planner.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Errorf("planner answered %d: %s", se.Status, se.Detail)
	case errors.Is(err, planner.ErrTimeout):
		return fmt.Errorf("planner did not answer in time: %w", err)
	case errors.Is(err, planner.ErrUnreachable):
		return fmt.Errorf("cannot reach the planner: %w", err)
	}
	return err
}

func cmdHealth(args []string) error {
	fs, pf := newFlagSet("health", defaultTimeout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := newClient(pf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pf.timeout)
	defer cancel()

	doc, err := client.Health(ctx)
	if err != nil {
		return explain(err)
	}
	var pretty any
	if err := json.Unmarshal(doc, &pretty); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "planner: %s\n", client.BaseURL())
	return printJSON(pretty)
}

func cmdAssign(args []string) error {
	fs, pf := newFlagSet("assign", defaultTimeout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vitalityctl assign <file.csv>")
	}
	path := fs.Arg(0)
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return errors.New(orchestrators.MsgNotCSV)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	client, err := newClient(pf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pf.timeout)
	defer cancel()
	list, err := client.AssignProgramsCSV(ctx, filepath.Base(path), f)
	if err != nil {
		return explain(err)
	}
	return printJSON(list)
}

// cmdProcess reads the CSV locally so row problems are reported before
// anything is sent.
func cmdProcess(args []string) error {
	fs, pf := newFlagSet("process", generateTimeout)
	plans := fs.Bool("plans", false, "Also generate detailed plans")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vitalityctl process [-plans] <file.csv>")
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := spreadsheet.ReadMembers(f)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "row %d: %s\n", e.Row, e.Message)
		}
		return fmt.Errorf("%d of %d rows are invalid", len(res.Errors), res.Total)
	}
	if len(res.Members) == 0 {
		return errors.New(orchestrators.MsgNoMembers)
	}

	client, err := newClient(pf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pf.timeout)
	defer cancel()
	list, err := client.Process(ctx, res.Members, *plans)
	if err != nil {
		return explain(err)
	}
	return printJSON(list)
}

func readMemberFile(path string) ([]member.WithPlans, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return member.DecodeList[member.WithPlans](body, member.KeyMembers, member.KeyData)
}

func cmdGenerate(args []string) error {
	fs, pf := newFlagSet("generate", generateTimeout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vitalityctl generate <members.json>")
	}
	list, err := readMemberFile(fs.Arg(0))
	if err != nil {
		return err
	}
	client, err := newClient(pf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pf.timeout)
	defer cancel()
	planned, err := client.GeneratePlans(ctx, list)
	if err != nil {
		return explain(err)
	}
	return printJSON(member.MergePlans(list, planned))
}

func cmdExport(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: vitalityctl export <members.json> <out.csv|out.xlsx>")
	}
	list, err := readMemberFile(args[0])
	if err != nil {
		return err
	}
	out := args[1]
	write := spreadsheet.WriteCSV
	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
	case ".xlsx":
		write = spreadsheet.WriteXLSX
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(out))
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := write(f, list); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d members to %s\n", len(list), out)
	return nil
}

func cmdConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: vitalityctl config show|set-api-base <url>|clear-api-base")
	}
	user, path, err := loadUserConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "show":
		base, err := resolveBase("", user)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "config file: %s\n", path)
		fmt.Fprintf(stdout, "api base:    %s (%s)\n", base.Get(), base.Source())
		if user.APIKey != "" {
			fmt.Fprintln(stdout, "api key:     set")
		}
		return nil
	case "set-api-base":
		if len(args) != 2 {
			return errors.New("usage: vitalityctl config set-api-base <url>")
		}
		raw := strings.TrimRight(strings.TrimSpace(args[1]), "/")
		if err := config.ValidateBaseURL(raw); err != nil {
			return err
		}
		user.APIBase = raw
	case "clear-api-base":
		user.APIBase = ""
	default:
		return fmt.Errorf("unknown config command %q", args[0])
	}

	if err := config.SaveUser(path, user); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s\n", path)
	return nil
}

func cmdHashPassword(in io.Reader) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	hash, err := orchestrators.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s=%s\n", config.EnvOperatorHash, hash)
	return nil
}
