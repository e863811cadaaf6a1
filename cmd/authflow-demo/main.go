// Command authflow-demo walks the full session core end-to-end against a
// real or embedded Redis: sign-up, e-mail confirmation, sign-in, a telemetry
// session with both sync triggers firing, and sign-out.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/hugoland/authflow"
	"github.com/hugoland/authflow/password"
	"github.com/hugoland/authflow/record"
	"github.com/hugoland/authflow/session"
)

type demoConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	SigningKey    string        `mapstructure:"signing_key"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	SyncDebounce  time.Duration `mapstructure:"sync_debounce"`
}

func loadConfig() (demoConfig, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("authflow-demo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("AUTHFLOW")
	v.AutomaticEnv()

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("signing_key", "demo-signing-key-0123456789abcdef")
	v.SetDefault("sync_interval", 3*time.Second)
	v.SetDefault("sync_debounce", 500*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return demoConfig{}, err
		}
	}

	var cfg demoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return demoConfig{}, err
	}
	return cfg, nil
}

func main() {
	logger := log.New(os.Stderr, "authflow-demo ", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	addr := cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Fatalf("start embedded redis: %v", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		logger.Printf("no redis configured, using embedded instance at %s", addr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		logger.Fatalf("password hasher: %v", err)
	}
	provider, err := session.New(rdb, hasher, []byte(cfg.SigningKey), session.Options{})
	if err != nil {
		logger.Fatalf("session provider: %v", err)
	}
	store, err := record.New(rdb, "")
	if err != nil {
		logger.Fatalf("record store: %v", err)
	}

	clientCfg := authflow.DefaultConfig()
	clientCfg.Sync.Interval = cfg.SyncInterval
	clientCfg.Sync.Debounce = cfg.SyncDebounce

	flowDone := make(chan struct{}, 1)
	client, err := authflow.New().
		WithConfig(clientCfg).
		WithSessionProvider(provider).
		WithRecordStore(store).
		WithAuditSink(authflow.NewJSONWriterSink(os.Stdout)).
		WithLogger(logger).
		WithOnComplete(func() { flowDone <- struct{}{} }).
		Build()
	if err != nil {
		logger.Fatalf("build client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	flow := client.Flow()
	const email = "adventurer@hugoland.example"
	const pass = "hunter2swordfish"

	// Sign up; the account stays pending until the confirmation token (the
	// link in the mail) is redeemed.
	flow.ChangeMode(authflow.ModeSignUp)
	flow.SetEmail(email)
	flow.SetPassword(pass)
	flow.SetConfirmPassword(pass)
	if err := flow.Submit(ctx); err != nil {
		logger.Fatalf("submit signup: %v", err)
	}
	if out := flow.Outcome(); out.Kind != authflow.OutcomeAwaitingConfirmation {
		logger.Fatalf("signup did not reach confirmation: %+v", out)
	}
	if err := flow.AcknowledgeEmailConfirmation(); err != nil {
		logger.Fatalf("acknowledge: %v", err)
	}
	<-flowDone

	token, err := provider.PendingConfirmToken(ctx, email)
	if err != nil {
		logger.Fatalf("confirm token: %v", err)
	}
	if err := provider.ConfirmEmail(ctx, email, token); err != nil {
		logger.Fatalf("confirm email: %v", err)
	}

	// Sign in and bind the telemetry job to the session.
	flow.SetEmail(email)
	flow.SetPassword(pass)
	if err := flow.Submit(ctx); err != nil {
		logger.Fatalf("submit signin: %v", err)
	}
	<-flowDone

	sess, ok := provider.Current()
	if !ok {
		logger.Fatal("no session after signin")
	}
	logger.Printf("signed in as %s (session %s)", sess.Email, sess.ID)

	syncJob := client.Sync()
	if err := syncJob.Start(sess); err != nil {
		logger.Fatalf("start sync: %v", err)
	}

	// Play: a burst of changes coalesces into one debounced write, then a
	// periodic tick picks up the rest.
	snap := authflow.Snapshot{Coins: 100, Gems: 3, Health: 50, MaxHealth: 50, Zone: 1, Attack: 12, Defense: 8}
	for i := 0; i < 5; i++ {
		snap.Coins += 25
		syncJob.Observe(snap)
	}
	time.Sleep(cfg.SyncDebounce + 200*time.Millisecond)

	snap.Zone = 2
	snap.Health = 41
	syncJob.Observe(snap)
	time.Sleep(cfg.SyncInterval + 200*time.Millisecond)

	syncJob.Stop()
	if err := provider.SignOut(ctx); err != nil {
		logger.Fatalf("signout: %v", err)
	}

	row, err := store.FindByUser(ctx, sess.ID)
	if err != nil {
		logger.Fatalf("final row: %v", err)
	}
	fmt.Printf("final analytics row: %+v\n", row)
	fmt.Printf("metrics: %v\n", client.MetricsSnapshot().Counters)
}
