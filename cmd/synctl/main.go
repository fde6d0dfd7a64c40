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
	"strings"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/integrations/monobank"
	"github.com/Dan9191/bank-sync/internal/middleware"
	"github.com/Dan9191/bank-sync/internal/repository"
	"github.com/Dan9191/bank-sync/internal/service"
	"github.com/Dan9191/bank-sync/internal/utils/email"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const usage = `Usage: synctl <command> [flags]

Commands:
  create-user     -username <name> [-email <addr>]
  set-credential  -user <id>               (token is read from the terminal)
  token           -user <id> [-ttl 24h]    issue an API bearer token
  sync            [-user <id>]             sync one user, or all users
  backfill        -user <id>               import the previous calendar month
  reconcile       [-user <id>]             reconcile one user, or all users
  ingest          -user <id> [-dir <path>] import statement files
  summary         -user <id> [-period week|month|year]
`

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	userID := fs.Int64("user", 0, "User id")
	username := fs.String("username", "", "Username")
	emailAddr := fs.String("email", "", "Email for notifications")
	dir := fs.String("dir", "", "Statement directory (default STATEMENT_DIR)")
	period := fs.String("period", "month", "Report period")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	if cmd == "token" {
		if *userID <= 0 {
			return fmt.Errorf("missing required flags: user")
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, *userID, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		return nil
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db, err := repository.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	repo := repository.NewRepository(db, cfg.DBDriver)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	svc, err := service.NewService(repo, monobank.NewClient(cfg, logger), logger, cfg,
		service.WithNotifier(email.NewSender(cfg, logger)))
	if err != nil {
		return err
	}

	requireUser := func() error {
		if *userID <= 0 {
			return fmt.Errorf("missing required flags: user")
		}
		return nil
	}

	switch cmd {
	case "create-user":
		if strings.TrimSpace(*username) == "" {
			return fmt.Errorf("missing required flags: username")
		}
		user, err := svc.CreateUser(ctx, *username, *emailAddr)
		if err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return fmt.Errorf("user %s already exists", *username)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
		return nil

	case "set-credential":
		if err := requireUser(); err != nil {
			return err
		}
		fmt.Fprint(stdout, "Bank token: ")
		token, err := readSecret(stdin)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		fmt.Fprintln(stdout)
		if err := svc.SetCredential(ctx, *userID, token); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Credential stored for user %d\n", *userID)
		return nil

	case "sync":
		if *userID > 0 {
			res, err := svc.SyncUser(ctx, *userID)
			if err != nil {
				return err
			}
			return printJSON(stdout, res)
		}
		results, err := svc.SyncAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, results)

	case "backfill":
		if err := requireUser(); err != nil {
			return err
		}
		res, err := svc.BackfillPreviousMonth(ctx, *userID)
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "reconcile":
		if *userID > 0 {
			n, err := svc.ReconcileAccounts(ctx, *userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Reconciled %d accounts\n", n)
			return nil
		}
		report, err := svc.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, report)

	case "ingest":
		if err := requireUser(); err != nil {
			return err
		}
		path := *dir
		if path == "" {
			path = cfg.StatementDir
		}
		res, err := svc.IngestDirectory(ctx, *userID, path)
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "summary":
		if err := requireUser(); err != nil {
			return err
		}
		summary, err := svc.PeriodSummary(ctx, *userID, *period)
		if err != nil {
			return err
		}
		return printJSON(stdout, summary)

	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSecret reads without echo from a terminal, or a single line otherwise
func readSecret(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
