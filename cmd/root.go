package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringP("provider", "P", "software", "Signing provider (software or pkcs11)")
	rootCmd.PersistentFlags().StringP("curve", "c", "p256", "Curve (p256, p384 or p521)")
	rootCmd.PersistentFlags().String("key-dir", "", "Directory with PEM key resources (default: embedded keys)")
	rootCmd.PersistentFlags().StringP("p11lib", "p", "", "Full path to PKCS11 lib file")
	rootCmd.PersistentFlags().StringP("user-key", "k", "1234", "HSM User Login PKCS11Key")
	rootCmd.PersistentFlags().StringP("key-label", "l", "ecc-bench", "Label of HSM Signer PKCS11Key")
	rootCmd.PersistentFlags().String("key-id", "", "CKA_ID of HSM Signer PKCS11Key (default: curve name)")
	rootCmd.PersistentFlags().StringP("mechanism", "m", "", "Mechanism used to sign digests on the HSM (default ECDSAhSHA256)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log raw HSM commands")

	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(importKeyCmd)
	rootCmd.AddCommand(resetKeysCmd)
	Log = log.New(os.Stderr, "", 0)
}

// Log is the logger shared by every command.
var Log *log.Logger

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ecc-bench",
	Short: "Signs and verifies with EC keys using software or a PKCS#11 device",
	Long: `Signs, verifies and benchmarks elliptic curve signatures using in-process
keys or keys stored in a PKCS#11 device.

	For more information, visit "https://github.com/niclabs/ecc-bench".`,
	SilenceUsage: true,
}

func initConfig() {
	viper.SetEnvPrefix("ECCBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	if len(configFile) == 0 {
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		Log.Printf("Error: cannot read config file %s: %s", configFile, err)
		os.Exit(1)
	}
}

func filesExist(files ...string) error {
	for _, file := range files {
		_, err := os.Stat(file)
		if err != nil || os.IsNotExist(err) {
			return fmt.Errorf("file %s doesn't exist or it has not reading permissions", file)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		Log.Printf("Error: %s", err)
		os.Exit(1)
	}
}
