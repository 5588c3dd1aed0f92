package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/backup"
	"example.com/garageroute/services/workshop/internal/notify"
	"example.com/garageroute/services/workshop/internal/service"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that consumes workshop events, sends
appointment reminders, flags overdue orders and takes scheduled backups`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if d.cache != nil {
			_ = d.cache.Close()
		}
		if d.bus != nil {
			_ = d.bus.Close()
		}
		if d.tracer != nil {
			d.tracer.Close()
		}
	}()

	// Event consumer, turns published events into customer and staff mail
	if d.bus != nil {
		notifier := service.NewNotifier(notify.NewMailer(cfg.Mail), cfg.Mail.StaffEmail)
		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting event consumer")
			return d.bus.ProcessMessages(ctx, notifier.HandleEvent)
		})
	} else {
		log.Warn().Msg("No service bus configured, event consumer disabled")
	}

	// Scheduled jobs
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		// Appointment reminders for the next 24 hours
		_, err = scheduler.NewJob(
			gocron.DurationJob(15*time.Minute),
			gocron.NewTask(func() {
				sent, err := d.services.Appointments.SendReminders(ctx, 24*time.Hour)
				if err != nil {
					log.Error().Err(err).Msg("Failed to send appointment reminders")
					return
				}
				if sent > 0 {
					log.Info().Int("sent", sent).Msg("Appointment reminders sent")
				}
			}),
		)
		if err != nil {
			return err
		}

		// Deadline watch for orders past their estimated delivery
		_, err = scheduler.NewJob(
			gocron.DurationJob(time.Hour),
			gocron.NewTask(func() {
				if _, err := d.services.Orders.NotifyOverdueOrders(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to flag overdue orders")
				}
			}),
		)
		if err != nil {
			return err
		}

		// Nightly database snapshot
		backupService := backup.NewService(d.db, cfg.Backup)
		_, err = scheduler.NewJob(
			gocron.CronJob(cfg.Backup.Cron, false),
			gocron.NewTask(func() {
				path, err := backupService.Run(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled backup failed")
					return
				}
				log.Info().Str("path", path).Msg("Backup written")
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
