package cmd

import (
	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resetKeysCmd = &cobra.Command{
	Use:   "reset-keys",
	Short: "Deletes all the keys registered in the HSM with specified key label",
	RunE:  resetKeys,
}

func resetKeys(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	curve, err := tools.ParseCurve(viper.GetString("curve"))
	if err != nil {
		return err
	}
	conf, err := newPKCS11Config(curve)
	if err != nil {
		return err
	}
	if err := tools.ResetKeys(conf, Log); err != nil {
		return err
	}
	Log.Printf("All keys destroyed.")
	return nil
}
