package bot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/broadcast"
	"hubnet/cache"
	"hubnet/cluster"
	"hubnet/config"
	"hubnet/database"
	"hubnet/fanout"
	"hubnet/identity"
	"hubnet/infraction"
	"hubnet/metrics"
	"hubnet/models"
	"hubnet/moderation"
	"hubnet/registry"
	"hubnet/render"
	"hubnet/sweeper"
	"hubnet/utils"
	"hubnet/webhook"
)

// Bot encapsulates the bot's state.
type Bot struct {
	Session  *discordgo.Session
	Settings *models.Settings
	Commands []*discordgo.ApplicationCommand

	DB          *sql.DB
	Store       *cache.RedisStore
	Messages    *database.MessageDB
	Registry    *registry.Registry
	Infractions *infraction.Store
	Gate        *moderation.Gate
	Renderer    *render.Renderer
	Webhooks    *webhook.Pool
	Identity    *identity.Index
	Broadcast   *broadcast.Service
	Cluster     *cluster.Cluster
	Scheduler   *Scheduler
	Sweeper     *sweeper.Sweeper
	Auth        *utils.Auth

	admin  *utils.AdminWriter
	cancel context.CancelFunc
}

// NewBot creates the session and every relay component from cfg.
func NewBot(ctx context.Context, cfg *models.Settings) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	if cfg.Bot.ShardCount > 1 {
		dg.ShardID = cfg.Bot.ShardID
		dg.ShardCount = cfg.Bot.ShardCount
	}

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	store, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := &Bot{
		Session:   dg,
		Settings:  cfg,
		DB:        db,
		Store:     store,
		Messages:  database.NewMessageDB(db),
		Scheduler: NewScheduler(),
		Auth:      utils.NewAuth(cfg.Bot.Developers),
	}

	b.Registry = registry.New(database.NewConnectionDB(db), database.NewHubDB(db), store, cfg.Cache.ConnectionTTL, cfg.Cache.HubTTL)
	b.Infractions = infraction.New(database.NewInfractionDB(db), b.Registry, store, cfg.Cache.InfractionTTL)
	b.Infractions.OnExpire(b.notifyExpired)

	lexicon := moderation.NewLexicon(cfg.Moderation.Profanity, cfg.Moderation.Slurs)
	opts := []moderation.Option{moderation.WithNotifier(NewReplyNotifier(dg))}
	if cfg.Moderation.NSFW.Endpoint != "" {
		opts = append(opts, moderation.WithClassifier(moderation.NewHTTPClassifier(cfg.Moderation.NSFW.Endpoint, cfg.Moderation.NSFW.Timeout)))
	}
	b.Gate = moderation.NewGate(
		&scheduledExpiry{Store: b.Infractions, scheduler: b.Scheduler},
		moderation.NewAntiSpam(store, cfg.Moderation.Spam),
		lexicon,
		cfg.Moderation,
		opts...,
	)

	fan := fanout.New(cfg.Broadcast.BatchSize, cfg.Broadcast.MaxInFlight)
	b.Renderer = render.New(lexicon)
	b.Webhooks = webhook.NewPool(webhook.NewDiscordClient, cfg.Broadcast.PoolSweepEvery)
	b.Identity = identity.New(identity.Config{
		Repo:        b.Messages,
		Connections: b.Registry,
		Hubs:        b.Registry,
		Webhooks:    b.Webhooks,
		Dispatcher:  fan,
		Renderer:    b.Renderer,
		Store:       store,
		RefTTL:      cfg.Cache.MessageRefTTL,
		LockTTL:     cfg.Broadcast.DeleteLockTTL,
	})
	b.Broadcast = broadcast.NewService(b.Identity, b.Webhooks, b.Registry, fan, b.Renderer)
	b.Sweeper = sweeper.New(b.Infractions, b.Messages, cfg.Messages.Retention)

	peers, err := cluster.Dial(cfg.Cluster.Peers)
	if err != nil {
		b.closeStores()
		return nil, err
	}
	b.Cluster = cluster.New(cluster.NewStateResolver(dg.State), cfg.Cluster.Timeout, peers...)

	return b, nil
}

// RegisterCommands records the application commands to create on Start.
func (b *Bot) RegisterCommands(commands []*discordgo.ApplicationCommand) {
	b.Commands = append(b.Commands, commands...)
}

// Start opens the bot's session and starts every background job.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	b.admin = utils.AttachAdminChannel(b.Session, b.Settings.Bot.AdminChannelID, b.Settings.Log.AdminRatePerSec, b.Settings.Log.Pretty)

	for _, cmd := range b.Commands {
		if _, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd); err != nil {
			log.Error().Err(err).Str("command", cmd.Name).Msg("cannot create command")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.Webhooks.Start()
	if err := b.Scheduler.AddRecurringTask("sweep", b.Settings.Messages.SweepEvery, b.Sweeper.Run); err != nil {
		return err
	}
	b.Scheduler.Start()

	metrics.Serve(ctx, b.Settings.Metrics.Listen)
	if addr := b.Settings.Cluster.Listen; addr != "" {
		srv := cluster.NewServer(cluster.NewStateResolver(b.Session.State))
		go func() {
			if err := cluster.Serve(ctx, addr, srv); err != nil {
				log.Error().Err(err).Msg("cluster RPC server stopped")
			}
		}()
	}

	log.Info().Msg("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully shuts everything down in reverse start order.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.Scheduler.Stop()
	b.Webhooks.Stop()
	if b.Session != nil {
		b.Session.Close()
	}
	if b.Cluster != nil {
		b.Cluster.Close()
	}
	b.closeStores()
	if b.admin != nil {
		b.admin.Close()
	}
	log.Info().Msg("Bot stopped gracefully.")
}

func (b *Bot) closeStores() {
	if err := b.Store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
	if err := b.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []*discordgo.ApplicationCommand) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading configuration")
	}
	if err := utils.InitLogger(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Fatal().Err(err).Msg("error initializing logger")
	}

	bot, err := NewBot(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing bot")
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatal().Err(err).Msg("error starting bot")
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
