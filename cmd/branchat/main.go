package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/branchat/cmd/branchat/cmds"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "branchat",
	Short: "branchat is a chat client with editable, branching conversations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func InitLogger(config *logConfig) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	log.Logger = logger.Output(logWriter)

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("branchat")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.branchat")
		viper.AddConfigPath("/etc/branchat")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/branchat")
		}
	}

	settings.SetDefaults(viper.GetViper())

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	err = viper.BindPFlags(flags)
	if err != nil {
		return err
	}
	for key, flag := range map[string]string{
		settings.KeyBackend:          "backend",
		settings.KeyChatModel:        "model",
		settings.KeyChatSystemPrompt: "system-prompt",
		settings.KeyClientBaseURL:    "base-url",
		settings.KeyClientToken:      "token",
		settings.KeyRetryMaxRetries:  "max-retries",
		settings.KeyLocalDatabase:    "database",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	// logging flags
	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Log file (default: stderr)")

	flags.String("config", "", "Path to config file (default ~/.branchat/config.yaml)")
	flags.Bool("verbose", false, "Verbose output")

	flags.String("backend", string(settings.BackendRemote), "Backend (remote, local, echo)")
	flags.String("model", settings.DefaultModel, "Model answering the prompts")
	flags.String("system-prompt", settings.DefaultSystemPrompt, "System prompt sent with every prompt")
	flags.String("base-url", settings.DefaultBaseURL, "Base URL of the chat API")
	flags.String("token", "", "Bearer token for the chat API")
	flags.Int("max-retries", settings.DefaultMaxRetries, "Retries after a failed completion attempt")
	flags.String("database", "branchat.db", "SQLite history database of the local backend")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
	}

	err := initCommands(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(cmds.NewChatCommand())
	rootCmd.AddCommand(cmds.NewHistoryCommand())
	rootCmd.AddCommand(cmds.NewConversationsCommand())
	rootCmd.AddCommand(cmds.NewConfigGroupCommand())
}
