package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskflow/internal/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> <email>",
	Short: "Create a user",
	Long: `Create an active user with the given role.

Examples:
  taskflow user add alice alice@example.com --role developer
  taskflow user add mo mo@example.com --role manager --first Mo --last Lee`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawRole, _ := cmd.Flags().GetString("role")
		role, err := models.ParseUserRole(rawRole)
		if err != nil {
			return err
		}
		first, _ := cmd.Flags().GetString("first")
		last, _ := cmd.Flags().GetString("last")

		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.CreateUser(cmd.Context(), models.User{
			Username:  args[0],
			Email:     args[1],
			FirstName: first,
			LastName:  last,
			Role:      role,
		})
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s, %s)\n", user.ID, user.Username, user.Role.DisplayName())
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var role models.UserRole
		if raw, _ := cmd.Flags().GetString("role"); raw != "" {
			parsed, err := models.ParseUserRole(raw)
			if err != nil {
				return err
			}
			role = parsed
		}

		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.ListUsers(cmd.Context(), role)
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Change a user's profile or role",
	Long: `Change the profile fields or role of an existing user. Only the flags
given are applied. A role change applies to the user's next request.

Examples:
  taskflow user update 3 --role manager
  taskflow user update 3 --email alice@corp.example --last Smith`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}

		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUser(cmd.Context(), id)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("role") {
			raw, _ := flags.GetString("role")
			if user.Role, err = models.ParseUserRole(raw); err != nil {
				return err
			}
		}
		for name, dst := range map[string]*string{
			"username": &user.Username,
			"email":    &user.Email,
			"first":    &user.FirstName,
			"last":     &user.LastName,
		} {
			if flags.Changed(name) {
				*dst, _ = flags.GetString(name)
			}
		}

		updated, err := store.UpdateUser(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated user %d (%s, %s)\n", updated.ID, updated.Username, updated.Role.DisplayName())
		return nil
	},
}

var userSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find active users by name, username or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("search term must not be empty")
		}

		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var userActivateCmd = newSetActiveCmd(true)

var userDeactivateCmd = newSetActiveCmd(false)

func newSetActiveCmd(active bool) *cobra.Command {
	verb, short := "deactivate", "Deactivate a user so their tokens stop working"
	if active {
		verb, short = "activate", "Reactivate a deactivated user"
	}
	return &cobra.Command{
		Use:   verb + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			_, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetUserActive(cmd.Context(), id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd user %d\n", strings.ToUpper(verb[:1])+verb[1:], id)
			return nil
		},
	}
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func printUsers(out io.Writer, users []models.User) {
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return
	}
	fmt.Fprintf(out, "%-6s %-20s %-30s %s\n", "ID", "USERNAME", "EMAIL", "ROLE")
	fmt.Fprintf(out, "%-6s %-20s %-30s %s\n", strings.Repeat("-", 6), strings.Repeat("-", 20), strings.Repeat("-", 30), strings.Repeat("-", 9))
	for _, u := range users {
		fmt.Fprintf(out, "%-6d %-20s %-30s %s\n", u.ID, u.Username, u.Email, u.Role)
	}
}

func init() {
	userCmd.PersistentFlags().String("db", "data/taskflow.db", "Path to sqlite database file")
	userAddCmd.Flags().String("role", "developer", "Role: admin, manager, developer or tester")
	userAddCmd.Flags().String("first", "", "First name")
	userAddCmd.Flags().String("last", "", "Last name")
	userListCmd.Flags().String("role", "", "Only list users with this role")
	userUpdateCmd.Flags().String("username", "", "New username")
	userUpdateCmd.Flags().String("email", "", "New email")
	userUpdateCmd.Flags().String("first", "", "New first name")
	userUpdateCmd.Flags().String("last", "", "New last name")
	userUpdateCmd.Flags().String("role", "", "New role: admin, manager, developer or tester")

	userCmd.AddCommand(userAddCmd, userListCmd, userUpdateCmd, userSearchCmd, userActivateCmd, userDeactivateCmd)
	rootCmd.AddCommand(userCmd)
}
