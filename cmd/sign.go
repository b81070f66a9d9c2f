package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	signCmd.Flags().StringP("file", "f", "", "Full path to the file to sign (default: embedded message)")
	signCmd.Flags().StringP("output", "o", "", "Output for the DER signature (default: hex to stdout)")
	signCmd.Flags().Bool("prehashed", false, "Hash the file and sign the digest with the raw signature algorithm")
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Signs a file with the selected provider and curve",
	RunE:  sign,
}

func sign(cmd *cobra.Command, _ []string) error {
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

	var sig []byte
	if viper.GetBool("prehashed") {
		sig, err = engine.SignPrehashed(engine.Hash(message))
	} else {
		sig, err = engine.Sign(message)
	}
	if err != nil {
		Log.Printf("file could not be signed.")
		return err
	}
	out := viper.GetString("output")
	if len(out) == 0 {
		fmt.Println(hex.EncodeToString(sig))
		return nil
	}
	if err := os.WriteFile(out, sig, 0644); err != nil {
		return err
	}
	Log.Printf("file signed successfully in %s.", out)
	return nil
}
