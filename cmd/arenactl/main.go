// Command arenactl — операторский CLI арены: ручной прогон расчёта,
// принудительный расчёт и возврат, просмотр и правка GP-леджера.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/marquessam/select-start-bot2-sub000/internal/app"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
)

// noDB помечает команды, которым не нужна база.
const noDB = "no-db"

type cli struct {
	svc *app.Services
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	root := c.rootCommand()
	err := root.ExecuteContext(ctx)
	if c.svc != nil {
		c.svc.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "arenactl",
		Short:         "Operate the arena settlement engine",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log.SetLevel(log.WarnLevel)
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			if cmd.Annotations[noDB] != "" {
				return nil
			}
			return c.connect(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.sweepCommand(),
		c.timeoutsCommand(),
		c.settleCommand(),
		c.refundCommand(),
		c.showCommand(),
		c.balanceCommand(),
		c.historyCommand(),
		c.ledgerCommand(),
		c.adjustCommand("give", 1),
		c.adjustCommand("take", -1),
		c.setAdminCommand(),
		c.hashPasswordCommand(),
	)
	return root
}

func (c *cli) connect(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Не удалось прочитать .env")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.svc, err = app.NewServices(ctx, cfg)
	return err
}
