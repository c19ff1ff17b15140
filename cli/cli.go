package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"reportdesk/config"
	"reportdesk/core/audit"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

const usage = "commands: grant-role, revoke-role, list-roles"

// Run executes a provisioning command and returns the process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		fmt.Println(usage)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if err := run(context.Background(), cfg, utils.NewLogger(), args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(out)
	userID := fs.String("user", "", "user id")
	role := fs.String("role", "", "role name")
	scope := fs.String("scope", "", "scope type: system, organization or event")
	scopeID := fs.String("scope-id", "", "organization or event id")
	actor := fs.String("by", "cli", "actor recorded in the audit log")

	switch args[0] {
	case "grant-role", "revoke-role", "list-roles":
	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	roles := store.NewRolesStore(db)
	if err := rbac.EnsureBuiltIn(ctx, roles); err != nil {
		return fmt.Errorf("roles: %w", err)
	}
	dispatcher := audit.NewDispatcher(store.NewAuditStore(db), audit.OptionsFromConfig(cfg.Audit), logger)
	dispatcher.Start()
	defer func() { _ = dispatcher.Stop(ctx) }()
	engine := rbac.NewEngine(roles, store.NewRoleAssignmentsStore(db), store.NewEventsStore(db), dispatcher, logger)

	var scopeType rbac.ScopeType
	if *scope != "" {
		st, ok := rbac.ParseScopeType(*scope)
		if !ok {
			return fmt.Errorf("invalid scope %q", *scope)
		}
		scopeType = st
	}

	switch args[0] {
	case "list-roles":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROLE\tLEVEL\tSCOPE\tSCOPE ID")
		for _, a := range engine.GetUserRoles(ctx, *userID, scopeType, *scopeID) {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", a.Role, a.Level, a.ScopeType, a.ScopeID)
		}
		return tw.Flush()
	}

	if scopeType == "" {
		return fmt.Errorf("-scope is required")
	}
	name, ok := rbac.ResolveRoleName(*role, scopeType)
	if !ok {
		return fmt.Errorf("unknown role %q", *role)
	}
	if args[0] == "grant-role" {
		if !engine.GrantRole(ctx, *userID, name, scopeType, *scopeID, *actor) {
			return fmt.Errorf("role %s could not be granted at %s scope", name, scopeType)
		}
		fmt.Fprintf(out, "granted %s to %s\n", name, *userID)
		return nil
	}
	if !engine.RevokeRole(ctx, *userID, name, scopeType, *scopeID, *actor) {
		return fmt.Errorf("no %s assignment for %s at that scope", name, *userID)
	}
	fmt.Fprintf(out, "revoked %s from %s\n", name, *userID)
	return nil
}
