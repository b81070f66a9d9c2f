package cmd

import (
	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importKeyCmd = &cobra.Command{
	Use:   "import-key",
	Short: "Imports the key pair of the selected curve into the PKCS#11 device",
	RunE:  importKey,
}

func importKey(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	conf, err := newEngineConfig()
	if err != nil {
		return err
	}
	if conf.PKCS11 == nil {
		if conf.PKCS11, err = newPKCS11Config(conf.Curve); err != nil {
			return err
		}
	}
	if err := tools.ImportKey(conf, Log); err != nil {
		return err
	}
	Log.Printf("key imported with label=%s and id=%s.", conf.PKCS11.Label, conf.PKCS11.ID)
	return nil
}
