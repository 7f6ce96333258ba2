package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Kyz7/hcg-auth/internal/database"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

func newCreateUserCmd() *cobra.Command {
	var in user.NewUser
	var cost int

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a user account (does nothing if it already exists)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if problems := in.Validate(); len(problems) > 0 {
				return fmt.Errorf("invalid user: %s", formatProblems(problems))
			}

			return withDB(cmd.Context(), func(db *gorm.DB) error {
				if err := database.Migrate(cmd.Context(), db); err != nil {
					return err
				}

				svc := user.NewService(user.NewStore(db), utils.NewPasswordHasher(cost))
				u, err := svc.Provision(cmd.Context(), in)
				if errors.Is(err, user.ErrUserExists) {
					cmd.Printf("User %q already exists, nothing to do.\n", in.Username)
					return nil
				}
				if err != nil {
					return err
				}

				cmd.Println("User created.")
				cmd.Printf("Username:  %s\n", u.Username)
				cmd.Printf("Email:     %s\n", u.Email)
				cmd.Printf("Role:      %s\n", u.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "admin", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "admin@hcg.com", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FullName, "full-name", "Admin User", "display name")
	cmd.Flags().StringVar(&in.Role, "role", user.RoleAdmin, "admin or user")
	cmd.Flags().BoolVar(&in.Inactive, "inactive", false, "create the account disabled")
	cmd.Flags().IntVar(&cost, "bcrypt-cost", utils.DefaultBcryptCost, "bcrypt work factor")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func formatProblems(problems map[string]string) string {
	keys := make([]string, 0, len(problems))
	for k := range problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "; "
		}
		out += problems[k]
	}
	return out
}
