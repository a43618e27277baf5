package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/classifier"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/evidence"
	"github.com/soclab/quell/executor"
	"github.com/soclab/quell/ingest"
	"github.com/soclab/quell/playbook"
	"github.com/soclab/quell/responder"
)

// Handle wires the repositories and responders together and serves the
// ingest API until the context is cancelled.
func Handle(ctx context.Context, configPath string) error {
	cfgRepository, err := repository.NewConfigRepository(configPath)
	if err != nil {
		return err
	}

	dynamoRepository, err := repository.NewDynamoDBRepository()
	if err != nil {
		return err
	}

	repo := repository.NewRepository(dynamoRepository, dynamoRepository, cfgRepository, cfgRepository)

	var notifier *Notifier
	if os.Getenv("SLACK_BOT_TOKEN") != "" {
		webApi := slack.New(os.Getenv("SLACK_BOT_TOKEN"))
		authTest, authTestErr := webApi.AuthTest()
		if authTestErr != nil {
			fmt.Fprintf(os.Stderr, "SLACK_BOT_TOKEN is invalid: %v\n", authTestErr)
			os.Exit(1)
		}
		slog.Info("Bot ID", slog.String("bot_id", authTest.UserID))
		slackRepository := repository.NewSlackRepository(webApi)
		notifier = NewNotifier(slackRepository, cfgRepository.AnnouncementChannels(ctx), cfgRepository.EscalationMention)
	} else {
		slog.Info("SLACK_BOT_TOKEN is not set, notifications disabled")
	}

	var edr responder.EDRClienter
	if cfgRepository.EDR.Endpoint != "" {
		edr = responder.NewEDRClient(cfgRepository.EDR.Endpoint,
			time.Duration(cfgRepository.EDR.TimeoutSeconds)*time.Second)
	}
	var identity responder.IdentityClienter
	if cfgRepository.Identity.Endpoint != "" {
		identity = responder.NewIdentityClient(cfgRepository.Identity.Endpoint,
			time.Duration(cfgRepository.Identity.TimeoutSeconds)*time.Second)
	}
	var firewall responder.FirewallClienter
	if cfgRepository.Firewall.Endpoint != "" {
		firewall = responder.NewFirewallClient(cfgRepository.Firewall.Endpoint,
			time.Duration(cfgRepository.Firewall.TimeoutSeconds)*time.Second)
	}

	var storer repository.EvidenceStorer
	if cfgRepository.Evidence.Bucket != "" {
		s3Repository, err := repository.NewS3Repository(ctx, cfgRepository.Evidence.Bucket, cfgRepository.Evidence.Prefix)
		if err != nil {
			return err
		}
		storer = s3Repository
	}

	var ai repository.AIRepositorier
	aiRepository, err := repository.NewAIRepository()
	if err != nil {
		return err
	}
	if aiRepository != nil {
		ai = aiRepository
	}

	var reportExporter repository.ReportExporter
	if os.Getenv("CONFLUENCE_USERNAME") != "" && os.Getenv("CONFLUENCE_PASSWORD") != "" && cfgRepository.Confluence.Domain != "" {
		r, err := repository.NewConfluenceRepository(
			cfgRepository.Confluence.Domain,
			os.Getenv("CONFLUENCE_USERNAME"),
			os.Getenv("CONFLUENCE_PASSWORD"),
			cfgRepository.Confluence.Space,
			cfgRepository.Confluence.AncestorID,
		)
		if err != nil {
			return err
		}
		reportExporter = r
	}

	var announcer executor.Announcer
	var engineNotifier Notifierer
	if notifier != nil {
		announcer = notifier
		engineNotifier = notifier
	}

	exec := executor.New(dynamoRepository, edr, identity, firewall, announcer)
	collector := evidence.NewCollector(edr, storer)
	deduper := ingest.NewDeduper(cfgRepository.DedupWindow())

	engine := NewEngine(
		repo,
		cfgRepository,
		classifier.New(cfgRepository),
		playbook.NewSelector(cfgRepository),
		exec,
		collector,
		deduper,
		engineNotifier,
		ai,
		reportExporter,
	)

	// escalation sweep over active incidents
	ticker := time.NewTicker(cfgRepository.EscalationInterval())
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.CheckEscalations(ctx)
			}
		}
	}()

	listenAddr := cfgRepository.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	server := NewServer(engine, os.Getenv("QUELL_API_TOKEN"))
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown server", slog.Any("err", err))
		}
	}()

	slog.Info("Listening", slog.String("addr", listenAddr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
