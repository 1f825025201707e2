// accountctl: tareas operativas contra el storage de accountd (migraciones,
// claves, alta de usuarios y reset de 2FA). No pasa por la API HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountd/internal/config"
	"github.com/dropDatabas3/accountd/internal/http/server"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
	"github.com/dropDatabas3/accountd/internal/store"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type cli struct {
	configPath string
	out        string // json | text
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{configPath: os.Getenv("CONFIG_PATH"), out: envOr("ACCOUNTCTL_OUT", "text"), timeout: 30 * time.Second}

	root := &cobra.Command{
		Use:           "accountctl",
		Short:         "Administración offline de accountd",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{Env: "dev", Level: envOr("LOG_LEVEL", "warn"), ServiceName: "accountctl"})
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", c.configPath, "YAML de configuración (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&c.out, "out", c.out, "Formato de salida: json|text")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", c.timeout, "Timeout por operación")

	root.AddCommand(c.migrateCmd(), c.keygenCmd(), c.userCmd())
	return root
}

// open carga config y abre el storage sin migrar.
func (c *cli) open(ctx context.Context) (*store.Repositories, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	sc := server.StoreConfig(cfg)
	sc.Migrate = false
	if sc.Driver == "memory" {
		return nil, fmt.Errorf("storage.driver=memory no persiste nada; configurá sqlite o postgres")
	}
	return store.Open(ctx, sc)
}

func (c *cli) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func (c *cli) print(cmd *cobra.Command, text string, v any) {
	w := cmd.OutOrStdout()
	if c.out == "json" {
		b, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(w, string(b))
		return
	}
	fmt.Fprintln(w, text)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd)
			defer cancel()
			repos, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer repos.Close()

			n, err := repos.Migrate(ctx)
			if err != nil {
				return err
			}
			c.print(cmd, fmt.Sprintf("%s: %d migraciones aplicadas", repos.Driver, n), map[string]any{"driver": repos.Driver, "applied": n})
			return nil
		},
	}
}

func (c *cli) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Genera SECRETBOX_MASTER_KEY y REMEMBER_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			remember, err := tokens.GenerateOpaqueToken(32)
			if err != nil {
				return err
			}
			c.print(cmd,
				"SECRETBOX_MASTER_KEY="+box+"\nREMEMBER_SIGNING_KEY="+remember,
				map[string]string{"secretbox_master_key": box, "remember_signing_key": remember},
			)
			return nil
		},
	}
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
