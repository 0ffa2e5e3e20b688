package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/medaccount/internal/client/client"
	"github.com/dmitrijs2005/medaccount/internal/client/config"
	"github.com/dmitrijs2005/medaccount/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/medaccount/internal/client/services"
	"github.com/dmitrijs2005/medaccount/internal/filex"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	session services.SessionService
	client  client.Client
	email   string
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	if c.StateDBPath != ":memory:" {
		if _, err := filex.EnsureParentDir(c.StateDBPath); err != nil {
			return nil, err
		}
	}

	db, err := client.InitDatabase(ctx, c.StateDBPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	repo := metadata.NewSQLiteRepository(db)

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr,
		client.WithUserAgent(c.UserAgent),
		client.WithTokenListener(services.PersistTokens(repo)),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:  c,
		db:      db,
		session: services.NewSessionService(apiClient, repo),
		client:  apiClient,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	email, err := a.session.Restore(ctx)
	if err != nil {
		log.Printf("could not restore saved login: %s", err.Error())
	}
	a.email = email

	printlnFn("Welcome to medaccount CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close releases the connection and the state database.
func (a *App) Close() {
	if err := a.session.Close(); err != nil {
		log.Printf("error closing connection: %s", err.Error())
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.email != ""
}

func (a *App) getStatus() string {
	if a.email == "" {
		return "(guest)"
	}
	return fmt.Sprintf("(%s)", a.email)
}

// withTimeout bounds a single server call by the configured request timeout.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
