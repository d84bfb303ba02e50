package main

import (
	"encoding/json"
	"fmt"
	"os"

	pin "github.com/legalpin/legalcert/pkg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	var configPath string
	var logLevel string
	var config pin.Config

	rootCmd := &cobra.Command{
		Use:   "legalcert",
		Short: "Anchor document fingerprints in a blockchain",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			config, err = LoadConfig(configPath)
			return err
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(0)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: search for config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.PersistentFlags().String("engine", "", "Engine name from the config (default: legalcert.default_engine)")
	viper.BindPFlags(rootCmd.PersistentFlags())

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the certification server",
		Run: func(cmd *cobra.Command, args []string) {
			Server(config)
		},
	}

	configCmd := &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		Run: func(cmd *cobra.Command, args []string) {
			o, _ := json.MarshalIndent(config, ">", " ")
			fmt.Println(string(o))
			os.Exit(0)
		},
	}

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	addEngineCommands(rootCmd, &config)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// LoadConfig reads the file at configPath, or the first config file found
// in the usual places (name from LEGALCERT_ENV, default "config").
func LoadConfig(configPath string) (pin.Config, error) {
	if configPath == "" {
		configFileName, set := os.LookupEnv("LEGALCERT_ENV")
		if set {
			viper.SetConfigName(configFileName)
		} else {
			viper.SetConfigName("config")
		}
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/legalcert/")
		viper.AddConfigPath("$HOME/.legalcert")

		if err := viper.ReadInConfig(); err != nil {
			return pin.Config{}, fmt.Errorf("failed to find config file: %w", err)
		}
		configPath = viper.ConfigFileUsed()
	}

	config, err := pin.LoadConfig(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	if engine := viper.GetString("engine"); engine != "" {
		config.Legalcert.DefaultEngine = engine
	}
	return config, nil
}
