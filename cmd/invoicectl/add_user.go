package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

type addUserCmd struct {
	username   string
	email      string
	role       string
	larkOpenID string
}

func (*addUserCmd) Name() string     { return "add-user" }
func (*addUserCmd) Synopsis() string { return "create a user" }
func (*addUserCmd) Usage() string {
	return `invoicectl add-user -username <name> -email <email> -role <EMPLOYEE|ACCOUNTS|SENIOR_ACCOUNTS> [-lark-open-id <id>]

  Creates a user and prints its id, which the auth gateway sends as X-User-ID.
`
}

func (a *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&a.username, "username", "", "Unique login name.")
	f.StringVar(&a.email, "email", "", "Email address.")
	f.StringVar(&a.role, "role", string(entity.RoleEmployee), "EMPLOYEE, ACCOUNTS or SENIOR_ACCOUNTS.")
	f.StringVar(&a.larkOpenID, "lark-open-id", "", "Lark open id for chat notifications.")
}

func (a *addUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if a.username == "" || a.email == "" {
		fmt.Fprintln(os.Stderr, "-username and -email are required")
		return subcommands.ExitUsageError
	}
	role := entity.Role(strings.ToUpper(a.role))

	return exitStatus(withContainer(ctx, func(c *container.Container) error {
		u, err := c.Services().User.Create(ctx, a.username, a.email, role, a.larkOpenID)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %s (%s)\n", u.Role, u.Username, u.ID)
		return nil
	}))
}
