package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/kbupload/internal/client/auth"
	"github.com/dmitrijs2005/kbupload/internal/client/client"
	"github.com/dmitrijs2005/kbupload/internal/client/config"
	"github.com/dmitrijs2005/kbupload/internal/client/database"
	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/dmitrijs2005/kbupload/internal/filex"
	"github.com/dmitrijs2005/kbupload/internal/logging"
)

var (
	errUsage      = errors.New("usage")
	errSomeBroken = errors.New("some uploads failed")
)

// App runs one subcommand against the configured store.
type App struct {
	config *config.Config
	out    io.Writer
	in     *bufio.Reader
	log    logging.Logger
	tokens *auth.TokenStore

	// newClient and openJournal are replaced in tests.
	newClient   func(ctx context.Context) (client.Client, error)
	openJournal func(ctx context.Context) (*database.Repositories, error)
}

// NewApp builds an App that prints to out and logs with log.
func NewApp(cfg *config.Config, out io.Writer, log logging.Logger) *App {
	a := &App{
		config: cfg,
		out:    out,
		in:     bufio.NewReader(os.Stdin),
		log:    log,
		tokens: auth.NewTokenStore(""),
	}
	a.newClient = a.defaultClient
	a.openJournal = a.defaultJournal
	return a
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "upload":
		return a.upload(ctx, rest)
	case "status":
		return a.status(ctx, rest)
	case "delete":
		return a.deleteFile(ctx, rest)
	case "history":
		return a.history(ctx, rest)
	case "files":
		return a.files(ctx, rest)
	case "resume":
		return a.resume(ctx, rest)
	case "retry":
		return a.retry(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout()
	case "version":
		return a.version()
	case "help", "-h", "--help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *App) usage() {
	fmt.Fprint(a.out, `Usage: kbupload [global flags] <command> [args]

Commands:
  upload [-org TAG] [-public] [-resume] FILE...   upload files
  status HASH                                     show what the store holds
  delete HASH                                     remove a file from the store
  history [-status S] [-prune]                    list uploads from the journal
  files                                           list uploads the server holds
  resume                                          continue unfinished uploads
  retry HASH...                                   upload broken files again
  watch [-org TAG] [-public] DIR                  upload files appearing in DIR
  login | logout                                  store or forget the API token
  version                                         print build data

Global flags: -a URL -t http|s3 -k TOKEN -n MAX -b CHUNK_BYTES -l LEVEL -d DB -c CONFIG
`)
}

// token returns the bearer token and its claims. A missing token is allowed
// (claims are nil); a malformed or expired one is not.
func (a *App) token(ctx context.Context) (string, *auth.Claims, error) {
	token, err := auth.Resolve(a.config.Token, a.tokens)
	if errors.Is(err, common.ErrNoToken) {
		a.log.Warn(ctx, "no API token configured, sending unauthenticated requests")
		return "", nil, nil
	}
	if err != nil {
		a.log.Warn(ctx, "token store unavailable", "error", err)
		return "", nil, nil
	}

	claims, err := auth.Inspect(token)
	if err != nil {
		return "", nil, fmt.Errorf("API token unusable, run login again: %w", err)
	}
	return token, claims, nil
}

func (a *App) defaultClient(ctx context.Context) (client.Client, error) {
	switch a.config.Transport {
	case config.TransportS3:
		s3 := a.config.S3
		c, err := client.NewS3Client(ctx, client.S3Options{
			Bucket:       s3.Bucket,
			Region:       s3.Region,
			BaseEndpoint: s3.BaseEndpoint,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
			Prefix:       s3.Prefix,
			ChunkSize:    a.config.ChunkSize,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		token, _, err := a.token(ctx)
		if err != nil {
			return nil, err
		}
		return client.NewHTTPClient(client.HTTPOptions{
			BaseURL:    a.config.ServerURL,
			Token:      token,
			Timeout:    a.config.RequestTimeout,
			RetryCount: a.config.RetryCount,
		}), nil
	}
}

func (a *App) defaultJournal(ctx context.Context) (*database.Repositories, error) {
	path := a.config.DatabasePath
	if path == "" {
		dir, err := filex.EnsureDir("")
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "kbupload.db")
	}
	return database.Open(ctx, path)
}

// defaultOrgTag is the token's primary org, or "" without a usable token.
func (a *App) defaultOrgTag(ctx context.Context) string {
	if a.config.Transport != config.TransportHTTP {
		return ""
	}
	_, claims, err := a.token(ctx)
	if err != nil || claims == nil {
		return ""
	}
	return claims.PrimaryOrg
}
