package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	verifyCmd.Flags().StringP("file", "f", "", "Full path to the signed file (default: embedded message)")
	verifyCmd.Flags().StringP("signature", "s", "", "Full path to the DER signature")
	verifyCmd.Flags().String("hex", "", "Signature as a hex string")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verifies a signature with the public key of the selected curve",
	RunE:  verify,
}

func verify(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	sig, err := readSignature(viper.GetString("signature"), viper.GetString("hex"))
	if err != nil {
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
	ok, err := engine.Verify(message, sig)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("signature is not valid")
	}
	Log.Printf("signature verified successfully.")
	return nil
}

func readSignature(path, hexSig string) ([]byte, error) {
	switch {
	case len(path) > 0 && len(hexSig) > 0:
		return nil, fmt.Errorf("use either --signature or --hex, not both")
	case len(path) > 0:
		if err := filesExist(path); err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	case len(hexSig) > 0:
		return hex.DecodeString(strings.TrimSpace(hexSig))
	}
	return nil, fmt.Errorf("signature not specified")
}
