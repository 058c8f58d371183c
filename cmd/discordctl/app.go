package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpclient "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"
)

const (
	tokenKey     = "token"
	tokenTypeKey = "token-type"
	baseURLKey   = "base-url"
	proxyKey     = "proxy"
	proxyUserKey = "proxy-user"
	proxyPassKey = "proxy-pass"
	redisAddrKey = "redis-addr"
	redisKeyKey  = "redis-key"
	attemptsKey  = "attempts"
	timeoutKey   = "timeout"
	useClockKey  = "use-clock"
	logLevelKey  = "log-level"
)

func submain(ctx context.Context) int {
	cmd, cfg := newRootCommand()
	ctx = withSignalCancel(ctx)
	err := cmd.ExecuteContext(ctx)
	cfg.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}

// cliConfig resolves flags and DISCORD_* environment variables into a client.
type cliConfig struct {
	v      *viper.Viper
	logger *zap.Logger
	redis  redis.UniversalClient
}

// newRootCommand returns the command tree and the config it resolves. The
// caller closes the config once the command has run, whatever its outcome.
func newRootCommand() (*cobra.Command, *cliConfig) {
	cfg := &cliConfig{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "discordctl",
		Short:         "Call the Discord REST API with bucket-aware rate limiting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(tokenKey, "", "bot token (env DISCORD_TOKEN)")
	flags.String(tokenTypeKey, "Bot", "authorization scheme: Bot or Bearer (env DISCORD_TOKEN_TYPE)")
	flags.String(baseURLKey, httpclient.DefaultBaseURL, "API root (env DISCORD_BASE_URL)")
	flags.String(proxyKey, "", "HTTP proxy URL (env DISCORD_PROXY)")
	flags.String(proxyUserKey, "", "proxy username (env DISCORD_PROXY_USER)")
	flags.String(proxyPassKey, "", "proxy password (env DISCORD_PROXY_PASS)")
	flags.String(redisAddrKey, "", "share the global rate limit through redis at this address (env DISCORD_REDIS_ADDR)")
	flags.String(redisKeyKey, "", "redis key of the shared global rate limit (env DISCORD_REDIS_KEY)")
	flags.Int(attemptsKey, 5, "attempts per request, retries included (env DISCORD_ATTEMPTS)")
	flags.Duration(timeoutKey, 30*time.Second, "timeout of a single attempt (env DISCORD_TIMEOUT)")
	flags.Bool(useClockKey, false, "compute bucket resets from X-Ratelimit-Reset and the local clock (env DISCORD_USE_CLOCK)")
	flags.String(logLevelKey, "warn", "log level: debug, info, warn, error (env DISCORD_LOG_LEVEL)")

	for _, key := range []string{
		tokenKey, tokenTypeKey, baseURLKey, proxyKey, proxyUserKey, proxyPassKey,
		redisAddrKey, redisKeyKey, attemptsKey, timeoutKey, useClockKey, logLevelKey,
	} {
		cfg.mustBindFlag(key, flags.Lookup(key))
	}

	cmd.AddCommand(
		newRequestCommand(cfg),
		newGatewayCommand(cfg),
		newWhoAmICommand(cfg),
		newUploadCommand(cfg),
		newCDNCommand(cfg),
		newVersionCommand(),
	)
	return cmd, cfg
}

func (c *cliConfig) mustBindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	env := "DISCORD_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if err := c.v.BindEnv(key, env); err != nil {
		panic(err)
	}
}

func (c *cliConfig) newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.v.GetString(logLevelKey))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", logLevelKey, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// client builds an unauthenticated client. Commands that need a token call
// login afterwards.
func (c *cliConfig) client() (*httpclient.Client, error) {
	logger, err := c.newLogger()
	if err != nil {
		return nil, err
	}
	c.logger = logger

	metricsEnabled := false
	config := httpclient.Config{
		BaseURL:        c.v.GetString(baseURLKey),
		TokenType:      c.v.GetString(tokenTypeKey),
		Proxy:          c.v.GetString(proxyKey),
		ProxyUsername:  c.v.GetString(proxyUserKey),
		ProxyPassword:  c.v.GetString(proxyPassKey),
		UseClock:       c.v.GetBool(useClockKey),
		Timeout:        c.v.GetDuration(timeoutKey),
		RetryConfig:    httpclient.RetryConfig{MaxAttempts: c.v.GetInt(attemptsKey)},
		Logger:         logger,
		MetricsEnabled: &metricsEnabled,
	}

	if addr := c.v.GetString(redisAddrKey); addr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: addr})
		var opts []httpclient.RedisGateOption
		if key := c.v.GetString(redisKeyKey); key != "" {
			opts = append(opts, httpclient.WithRedisGateKey(key))
		}
		config.GlobalGate = httpclient.NewRedisGlobalGate(c.redis, opts...)
	}

	return httpclient.New(config, "discordctl")
}

// login opens an authenticated session, or an anonymous one without a token.
func (c *cliConfig) login(ctx context.Context, client *httpclient.Client) error {
	token := c.v.GetString(tokenKey)
	if token == "" {
		client.Recreate()
		return nil
	}
	_, err := client.Login(ctx, token)
	return err
}

func (c *cliConfig) close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
