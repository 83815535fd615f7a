package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/application"
)

var cfgFile string
var logger *zap.SugaredLogger
var dataDir string
var ownerKey string

var rootCmd = &cobra.Command{
	Use:   "domainsbot",
	Short: "Domain security monitoring: GOST TLS, WAF presence, certificates and DNS",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".domainsbot")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("domainsbot")
		viper.AutomaticEnv()

		_ = viper.ReadInConfig()

		if dataDir == "" {
			dataDir = viper.GetString("data_dir")
		}
		if dataDir == "" {
			dataDir = "./data"
		}
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %s", err.Error())
		}

		l, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l.Sugar()

		logger.Infof("data_dir=%s", dataDir)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.domainsbot.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the monitoring and destination documents")
	rootCmd.PersistentFlags().StringVar(&ownerKey, "owner", "shared", "watch-list owner: 'shared' or a numeric user ID")
	bindConfigFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(versionCmd)
}

// bindConfigFlags lets flags override their config-file counterparts.
func bindConfigFlags(fs *pflag.FlagSet) {
	_ = viper.BindPFlag("data_dir", fs.Lookup("data-dir"))
}

// containerConfig collects the engine settings from viper, with defaults
// matching a single-host deployment.
func containerConfig() application.Config {
	viper.SetDefault("concurrency", 20)
	viper.SetDefault("tick_seconds", 60)
	viper.SetDefault("dns_timeout_seconds", 5)
	viper.SetDefault("waf_timeout_seconds", 6)
	viper.SetDefault("tls_timeout_seconds", 10)
	viper.SetDefault("notify_rate", 1.0)

	return application.Config{
		DataDir:       dataDir,
		TelegramToken: viper.GetString("telegram_token"),
		GostCheckURLs: viper.GetStringSlice("gost_check_urls"),
		NameServers:   viper.GetStringSlice("nameservers"),
		Concurrency:   viper.GetInt("concurrency"),
		Tick:          time.Duration(viper.GetInt("tick_seconds")) * time.Second,
		DNSTimeout:    time.Duration(viper.GetInt("dns_timeout_seconds")) * time.Second,
		WAFTimeout:    time.Duration(viper.GetInt("waf_timeout_seconds")) * time.Second,
		TLSTimeout:    time.Duration(viper.GetInt("tls_timeout_seconds")) * time.Second,
		NotifyRate:    viper.GetFloat64("notify_rate"),
	}
}

func buildContainer() (*application.Container, error) {
	return application.NewContainer(containerConfig(), logger)
}
