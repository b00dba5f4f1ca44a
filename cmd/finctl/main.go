package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/LovationAdmin/finance-assistant/client"
	"github.com/LovationAdmin/finance-assistant/dashboard"
	"github.com/LovationAdmin/finance-assistant/logger"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultAPIURL = "http://localhost:8000"

// analyze_finances waits on the forecaster and several LLM calls.
const requestTimeout = 3 * time.Minute

type app struct {
	log       zerolog.Logger
	client    *client.Client
	dash      *dashboard.Dashboard
	tokenPath string
}

func main() {
	log := logger.NewConsole(os.Stderr)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	a, err := newApp(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	args := os.Args[2:]
	switch os.Args[1] {
	case "signup":
		err = a.runSignup(ctx, args)
	case "login":
		err = a.runLogin(ctx, args)
	case "logout":
		err = a.client.Logout()
	case "link":
		err = a.runLink(ctx, args)
	case "transactions":
		err = a.runTransactions(ctx)
	case "analyze":
		err = a.runAnalyze(ctx, args)
	case "categories":
		err = a.runCategories(ctx, args)
	case "forecast":
		err = a.runForecast(ctx)
	case "chat":
		err = a.runChat(ctx, args)
	case "send-email":
		err = a.runSendEmail(ctx, args)
	case "watch":
		err = a.runWatch(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, client.ErrUnauthorized) {
		fmt.Fprintln(os.Stderr, "Not signed in. Run 'finctl login' first.")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Assistant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  finctl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  signup        Create an account (-email, -password, -name)")
	fmt.Println("  login         Sign in (-email, -password, -code)")
	fmt.Println("  logout        Forget the stored session")
	fmt.Println("  link          Link a bank account (-demo for the sandbox bank)")
	fmt.Println("  transactions  Sync and list recent transactions")
	fmt.Println("  analyze       Run the full analysis (-query)")
	fmt.Println("  categories    Spending by category (-days)")
	fmt.Println("  forecast      30-day spending forecast")
	fmt.Println("  chat          Ask the assistant a question (interactive without arguments)")
	fmt.Println("  send-email    Send the negotiation e-mail for -merchant")
	fmt.Println("  watch         Print live events")
	fmt.Println("\nEnvironment: FINCTL_API_URL (default " + defaultAPIURL + "), FINCTL_SESSION")
}

func newApp(log zerolog.Logger) (*app, error) {
	sessionPath := os.Getenv("FINCTL_SESSION")
	if sessionPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		sessionPath = filepath.Join(dir, "finctl", "session.json")
	}

	session, err := client.NewSession(client.FileStore{Path: sessionPath})
	if err != nil {
		return nil, err
	}

	apiURL := os.Getenv("FINCTL_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	c, err := client.New(apiURL, session, client.WithHTTPClient(&http.Client{Timeout: requestTimeout}))
	if err != nil {
		return nil, err
	}

	return &app{
		log:       log,
		client:    c,
		dash:      dashboard.New(c, log),
		tokenPath: sessionPath + ".access",
	}, nil
}

// ============================================================================
// ACCOUNT
// ============================================================================

func (a *app) runSignup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return errors.New("usage: finctl signup -email EMAIL -password PASSWORD [-name NAME]")
	}
	resp, err := a.client.Signup(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	fmt.Printf("Signed up as %s\n", resp.User.Email)
	return nil
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	code := fs.String("code", "", "2FA code, when enabled")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return errors.New("usage: finctl login -email EMAIL -password PASSWORD [-code 123456]")
	}
	resp, err := a.client.Login(ctx, *email, *password, *code)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", resp.User.Email)
	return nil
}

// ============================================================================
// BANK LINK
// ============================================================================

// promptWidget stands in for the aggregator's browser widget: the user
// completes the link elsewhere and pastes the public token.
type promptWidget struct{}

func (promptWidget) Open(ctx context.Context, linkToken string) (string, error) {
	fmt.Printf("Link token: %s\n", linkToken)
	fmt.Print("Complete the bank link, then paste the public token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no public token entered")
	}
	return token, nil
}

func (a *app) runLink(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	demo := fs.Bool("demo", false, "link the sandbox institution")
	fs.Parse(args)

	flow := dashboard.NewLinkFlow(a.client, a.client.Session(), a.log)

	var access string
	var err error
	if *demo {
		access, err = flow.Demo(ctx)
	} else {
		flow.Prepare(ctx)
		if !a.client.Session().Authenticated() {
			return client.ErrUnauthorized
		}
		if !flow.Ready() {
			return errors.New("the backend did not return a link token")
		}
		access, err = flow.Connect(ctx, promptWidget{})
	}
	if err != nil {
		return err
	}

	if err := a.saveAccessToken(access); err != nil {
		return err
	}
	fmt.Println("Bank account linked.")
	return nil
}

func (a *app) saveAccessToken(token string) error {
	return os.WriteFile(a.tokenPath, []byte(token), 0o600)
}

func (a *app) loadAccessToken() (string, error) {
	data, err := os.ReadFile(a.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("no linked bank account, run 'finctl link' first")
	}
	return strings.TrimSpace(string(data)), err
}

// ============================================================================
// DATA
// ============================================================================

func (a *app) runTransactions(ctx context.Context) error {
	access, err := a.loadAccessToken()
	if err != nil {
		return err
	}
	if err := a.dash.LoadTransactions(ctx, access); err != nil {
		return err
	}
	printTransactions(a.dash.RecentTransactions())
	return nil
}

func (a *app) runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	query := fs.String("query", "Analyze my finances", "question for the assistant")
	fs.Parse(args)

	if access, err := a.loadAccessToken(); err == nil {
		if err := a.dash.LoadTransactions(ctx, access); err != nil {
			a.log.Warn().Err(err).Msg("Transaction sync failed")
		}
		if err := a.saveAccessToken(access); err != nil {
			return err
		}
	}

	runErr := a.dash.RunAnalysis(ctx, *query)
	s := a.dash.Snapshot()
	if s.Error != "" {
		fmt.Println("!", s.Error)
	}

	printForecast(s.Forecast)
	printSubscriptions(s.Subscriptions)
	printAlerts(s.Alerts)
	printEmails(s.Emails)
	printTransactions(a.dash.RecentTransactions())
	if s.Categories != nil {
		printCategories(*s.Categories)
	}
	return runErr
}

func (a *app) runCategories(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	days := fs.Int("days", dashboard.CategoryDays, "window in days")
	fs.Parse(args)

	raw, err := a.client.SpendingCategories(ctx, *days)
	if err != nil {
		return err
	}
	cb, err := dashboard.ParseCategories(raw)
	if err != nil {
		return err
	}
	printCategories(cb)
	return nil
}

func (a *app) runForecast(ctx context.Context) error {
	raw, err := a.client.ForecastSpending(ctx)
	if err != nil {
		return err
	}
	f, err := dashboard.ParseForecast(raw)
	if err != nil {
		return err
	}
	printForecast(f)
	return nil
}

// runChat answers a single question, or reads questions from stdin until EOF
// when none is given. "history" prints the conversation so far.
func (a *app) runChat(ctx context.Context, args []string) error {
	chat := dashboard.NewChat(a.client)
	if len(args) > 0 {
		fmt.Println(chat.Send(ctx, strings.Join(args, " ")).Text)
		return nil
	}

	in := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); in.Scan(); fmt.Print("> ") {
		switch q := strings.TrimSpace(in.Text()); q {
		case "":
		case "history":
			printTurns(chat.Turns())
		default:
			fmt.Println(chat.Send(ctx, q).Text)
		}
	}
	fmt.Println()
	return in.Err()
}

func (a *app) runSendEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send-email", flag.ExitOnError)
	merchant := fs.String("merchant", "", "subscription merchant, exact name")
	fs.Parse(args)

	if *merchant == "" {
		return errors.New("usage: finctl send-email -merchant NAME")
	}
	if err := a.dash.RunAnalysis(ctx, "Analyze my finances"); err != nil {
		return err
	}

	for _, e := range a.dash.Snapshot().Emails {
		if e.Merchant != *merchant {
			continue
		}
		if e.EmailSent {
			fmt.Printf("E-mail to %s was already sent.\n", e.Merchant)
			return nil
		}
		if err := a.dash.SendEmail(ctx, e); err != nil {
			return err
		}
		fmt.Printf("Sent to %s\n", e.To)
		return nil
	}
	return fmt.Errorf("no pending e-mail for %q", *merchant)
}

func (a *app) runWatch(ctx context.Context) error {
	if !a.client.Session().Authenticated() {
		return client.ErrUnauthorized
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.client.WebsocketURL(), nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Println("Watching for events, Ctrl-C to stop.")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Println(string(msg))
	}
}
