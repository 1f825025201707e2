package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/security/password"
)

func (c *cli) userCmd() *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Operaciones sobre usuarios"}
	userCmd.AddCommand(c.userCreateCmd(), c.userStatusCmd(), c.userResetTwoFactorCmd())
	return userCmd
}

func (c *cli) userCreateCmd() *cobra.Command {
	var email, name, plain string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario con password",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" || plain == "" {
				return fmt.Errorf("--email y --password son requeridos")
			}
			if ok, reasons := password.DefaultPolicy.Validate(plain); !ok {
				return fmt.Errorf("password rechazado: %s", strings.Join(reasons, ", "))
			}
			if name == "" {
				name = strings.SplitN(email, "@", 2)[0]
			}

			ctx, cancel := c.ctx(cmd)
			defer cancel()
			repos, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer repos.Close()

			hash, err := password.Hash(password.Default, plain)
			if err != nil {
				return err
			}
			u, err := repos.Users.Create(ctx, repository.CreateUserInput{Email: email, Name: name, PasswordHash: hash})
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("ya existe un usuario con email %s", email)
			}
			if err != nil {
				return err
			}
			c.print(cmd, "created "+u.ID, map[string]string{"id": u.ID, "email": u.Email})
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email del usuario")
	cmd.Flags().StringVar(&name, "name", "", "Nombre visible (default: parte local del email)")
	cmd.Flags().StringVar(&plain, "password", "", "Password inicial")
	return cmd
}

func (c *cli) userStatusCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "twofactor-status",
		Short: "Muestra el estado de 2FA y la cantidad de passkeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			repos, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer repos.Close()

			u, err := repos.Users.GetByEmail(ctx, email)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("usuario %s no encontrado", email)
			}
			if err != nil {
				return err
			}
			n, err := repos.Passkeys.CountByUser(ctx, u.ID)
			if err != nil {
				return err
			}

			state := "off"
			switch {
			case u.TwoFactor.Enabled():
				state = "enabled"
			case u.TwoFactor.HasSecret():
				state = "pending"
			}
			c.print(cmd,
				fmt.Sprintf("%s two_factor=%s passkeys=%d", u.Email, state, n),
				map[string]any{"id": u.ID, "email": u.Email, "two_factor": state, "passkeys": n},
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email del usuario")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// reset-twofactor borra secreto y recovery codes: el usuario vuelve a entrar sólo con password.
func (c *cli) userResetTwoFactorCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-twofactor",
		Short: "Desactiva 2FA de un usuario (soporte, dispositivo perdido)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			repos, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer repos.Close()

			u, err := repos.Users.GetByEmail(ctx, email)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("usuario %s no encontrado", email)
			}
			if err != nil {
				return err
			}
			if err := repos.TwoFactor.Clear(ctx, u.ID); err != nil {
				return err
			}
			// La cache del gate expira sola (cache.two_factor_ttl).
			c.print(cmd, "2FA reset for "+u.Email, map[string]any{"id": u.ID, "reset": true})
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email del usuario")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
