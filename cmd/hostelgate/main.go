package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hostelgate/internal/app"
	"github.com/dropDatabas3/hostelgate/internal/config"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"

	// Registran los adapters de store vía init()
	_ "github.com/dropDatabas3/hostelgate/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/hostelgate/internal/store/adapters/pg"
)

// Seteados por -ldflags en el build.
var (
	version = "dev"
	commit  = ""
)

func main() {
	// .env es opcional
	_ = godotenv.Load()

	var cfgPath = envOr("HOSTELGATE_CONFIG", "")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.App.LogLevel,
			ServiceName: "hostelgate",
			Version:     version,
		})
		return cfg, nil
	}

	root := &cobra.Command{
		Use:           "hostelgate",
		Short:         "Autorización de ingreso de visitas al hostel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Archivo YAML de config (env HOSTELGATE_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el API HTTP y el janitor de OTPs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, app.Options{Version: version, Commit: commit, ExposeMetrics: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return a.Serve(ctx)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := app.OpenStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Borra challenges OTP vencidos fuera de la retención",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg, app.Options{Version: version, Commit: commit})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			n, err := a.Services.Maintenance.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("purged=%d\n", n)
			return nil
		},
	}

	// token: emite un bearer para pruebas locales (mismo secreto que el servicio)
	var tokSub, tokRole, tokName string
	var tokPerms []string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un access token firmado (dev)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokSub == "" {
				return fmt.Errorf("--sub es requerido")
			}
			switch tokRole {
			case jwtx.RoleGuard, jwtx.RoleWarden, jwtx.RoleStudent, jwtx.RoleAdmin:
			default:
				return fmt.Errorf("--role inválido: %q", tokRole)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			perms := tokPerms
			if len(perms) == 0 {
				perms = jwtx.DefaultPerms(tokRole)
			}
			iss := jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWT.Secret, config.MustDuration(cfg.JWT.AccessTTL, 12*time.Hour))
			tok, exp, err := iss.Sign(tokSub, tokRole, perms, tokName)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			fmt.Fprintf(os.Stderr, "expires=%s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokSub, "sub", "", "ID del actor (guardia, warden o residente)")
	tokenCmd.Flags().StringVar(&tokRole, "role", jwtx.RoleGuard, "Rol: guard|warden|student|admin")
	tokenCmd.Flags().StringVar(&tokName, "name", "", "Nombre para mostrar (opcional)")
	tokenCmd.Flags().StringSliceVar(&tokPerms, "perm", nil, "Permisos explícitos (default: los del rol)")

	// ping: readiness de un servidor corriendo
	var pingURL = envOr("HOSTELGATE_URL", "http://localhost:8080")
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Consulta /readyz de un servidor corriendo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(pingURL, "/")+"/readyz", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			fmt.Println(strings.TrimSpace(string(b)))
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("not ready: status=%d", resp.StatusCode)
			}
			return nil
		},
	}
	pingCmd.Flags().StringVar(&pingURL, "url", pingURL, "URL base del servicio (env HOSTELGATE_URL)")

	root.AddCommand(serveCmd, migrateCmd, purgeCmd, tokenCmd, pingCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
