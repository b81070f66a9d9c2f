package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	digestCmd.Flags().StringP("file", "f", "", "Full path to the file to hash (default: embedded message)")
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Prints the digest the selected provider signs",
	RunE:  digest,
}

func digest(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	conf, err := newEngineConfig()
	if err != nil {
		return err
	}
	message, err := readInput(viper.GetString("file"))
	if err != nil {
		return err
	}
	engine, err := tools.NewEngine(conf, Log)
	if err != nil {
		return err
	}
	defer engine.Close()
	fmt.Println(hex.EncodeToString(engine.Hash(message)))
	return nil
}
