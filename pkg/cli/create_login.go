package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/storage"
)

const (
	databaseURLEnv   = "MULTIPASS_DATABASE_URL"
	loginPasswordEnv = "MULTIPASS_LOGIN_PASSWORD"
)

func newCreateLoginCommand() *Command {
	return &Command{
		Name:        "create-login",
		Description: "Create a person with a local password login",
		Run:         runCreateLogin,
	}
}

func runCreateLogin(args []string) error {
	flags := newFlagSet("create-login")
	databaseURL := flags.String("database-url", os.Getenv(databaseURLEnv), "Database URL (postgres:// or sqlite://)")
	username := flags.String("username", "", "Login username (required)")
	password := flags.String("password", "", "Password (default $"+loginPasswordEnv+")")
	email := flags.String("email", "", "Email address")
	firstName := flags.String("first-name", "", "First name")
	lastName := flags.String("last-name", "", "Last name")
	nickName := flags.String("nickname", "", "Nickname")
	unconfirmed := flags.Bool("unconfirmed", false, "Require email confirmation before the first login")
	migrate := flags.Bool("migrate", true, "Create missing tables first")
	logLevel := flags.String("log-level", "info", "Log level")

	if err := flags.Parse(args); err != nil {
		return err
	}
	logger := newLogger(*logLevel)

	if *username == "" {
		return errors.New("-username is required")
	}
	if *password == "" {
		*password = os.Getenv(loginPasswordEnv)
	}
	if *password == "" {
		return fmt.Errorf("-password or %s is required", loginPasswordEnv)
	}

	ctx := context.Background()
	cfg := storage.DefaultConfig()
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	db, dialect, err := storage.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if *migrate {
		if err := storage.Migrate(ctx, db, dialect); err != nil {
			return err
		}
		logger.Debug("Schema is up to date")
	}

	personID, err := identity.NewSQLStore(db).CreateDatabaseLogin(ctx, identity.NewDatabaseLogin{
		Username:  *username,
		Password:  *password,
		Confirmed: !*unconfirmed,
		Person: identity.Person{
			Email:     *email,
			FirstName: *firstName,
			LastName:  *lastName,
			NickName:  *nickName,
		},
	})
	if errors.Is(err, identity.ErrDuplicateLogin) {
		return fmt.Errorf("login %q already exists", *username)
	}
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"username":  *username,
		"person_id": personID,
		"dialect":   dialect,
	}).Info("Created login")
	fmt.Fprintf(output, "created login %s for person %d\n", *username, personID)
	return nil
}
