// Command chainctl manages scenarios, predictions and contacts stored in a
// homewatch state snapshot. Read commands work alongside a running server;
// commands that change the snapshot need the server stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homewatch/internal/engine"
	filestore "homewatch/internal/engine/infrastructure/file"
	"homewatch/internal/escalation/contacts"
)

var cfgFile string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chainctl",
		Short:         "Manage homewatch event chains and contacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chainctl.yaml)")
	cmd.PersistentFlags().String("state-file", "var/homewatch/state.json", "engine state snapshot")
	cmd.PersistentFlags().String("contacts-file", "var/homewatch/contacts.yaml", "escalation contacts file")
	_ = viper.BindPFlag("state_file", cmd.PersistentFlags().Lookup("state-file"))
	_ = viper.BindPFlag("contacts_file", cmd.PersistentFlags().Lookup("contacts-file"))

	cmd.AddCommand(newScenariosCmd(), newPredictCmd(), newSuggestCmd(), newStatusCmd(), newContactsCmd())
	return cmd
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chainctl")
	}
	viper.SetEnvPrefix("CHAINCTL")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// session is an engine loaded from the configured snapshot.
type session struct {
	engine *engine.Engine
	store  *filestore.Store
}

func openSession(ctx context.Context) (*session, error) {
	store, err := filestore.NewStore(viper.GetString("state_file"))
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithPersistence(store), engine.WithoutDiagnosticsMirror()}
	if path := viper.GetString("contacts_file"); path != "" {
		source, err := contacts.NewFileSource(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithLadderSource(source))
	}
	eng := engine.New(opts...)
	if err := eng.Load(ctx); err != nil {
		return nil, err
	}
	return &session{engine: eng, store: store}, nil
}

// save writes the snapshot under the state file lock. A running server holds
// that lock, so edits are refused instead of being overwritten by its next
// snapshot.
func (s *session) save(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.store.Path()), 0o755); err != nil {
		return fmt.Errorf("chainctl: state dir: %w", err)
	}
	lock, err := s.store.Lock()
	if errors.Is(err, filestore.ErrLocked) {
		return fmt.Errorf("chainctl: %w; stop the homewatch server or edit scenarios through its HTTP API", err)
	}
	if err != nil {
		return err
	}
	defer lock.Release()
	return s.engine.Save(ctx)
}
