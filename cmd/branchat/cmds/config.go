package cmds

import (
	"io"
	"os"

	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewConfigGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and check the configuration",
	}
	cmd.AddCommand(NewPrintConfigCommand())
	cmd.AddCommand(NewCheckConfigCommand())
	return cmd
}

func NewPrintConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective settings as a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return printSettings(s, cmd.OutOrStdout())
		},
	}
}

func NewCheckConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [FILE]",
		Short: "Check a config file (default: the loaded config file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file found")
			}
			s, err := checkConfigFile(path)
			if err != nil {
				return err
			}
			return printSettings(s, cmd.OutOrStdout())
		},
	}
}

func checkConfigFile(path string) (*settings.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open config file")
	}
	defer func() {
		_ = f.Close()
	}()
	s, err := settings.NewSettingsFromYAML(f)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}
	return s, nil
}

func printSettings(s *settings.Settings, out io.Writer) error {
	s = s.Clone()
	if s.Client.Token != "" {
		s.Client.Token = "***"
	}
	if s.Local.APIKey != "" {
		s.Local.APIKey = "***"
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "could not encode settings")
	}
	return enc.Close()
}
