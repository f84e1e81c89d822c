package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mongobridge/mongosrv/config"
	"github.com/mongobridge/mongosrv/pkg/credentials"
	credfile "github.com/mongobridge/mongosrv/pkg/credentials/file"
	"github.com/mongobridge/mongosrv/pkg/scram"
)

// newCreateUserCommand derives a SCRAM-SHA-256 credential and stores it via
// a credentials.Provider (spec §4.2/§6.8), so the user it creates is
// authenticatable by a `serve` process pointed at the same credentials
// file. --credentials-file defaults to the config's auth.credentialsFile;
// an explicit flag value overrides it. Without either, there is nowhere
// durable to store the credential, so the command fails rather than
// silently only printing it.
func newCreateUserCommand(_ *zap.Logger, loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		username        string
		password        string
		authDB          string
		credentialsFile string
	)

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Derive a SCRAM-SHA-256 credential and store it in the credentials file",
		Example: `  mongosrvd createuser --username alice --password s3cret --authdb admin --credentials-file ./credentials.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("createuser: --username and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("createuser: load config: %w", err)
			}
			if !cmd.Flags().Changed("credentials-file") {
				credentialsFile = cfg.Auth.CredentialsFile
			}
			if credentialsFile == "" {
				return fmt.Errorf("createuser: --credentials-file (or config auth.credentialsFile) is required to persist the user")
			}

			cred, err := scram.DeriveCredential(username, authDB, password, credentials.RecommendedIterations)
			if err != nil {
				return fmt.Errorf("createuser: derive credential: %w", err)
			}

			store, err := credfile.New(credentialsFile)
			if err != nil {
				return fmt.Errorf("createuser: open credentials file %s: %w", credentialsFile, err)
			}
			if err := store.Store(cred); err != nil {
				return fmt.Errorf("createuser: store credential: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored credential for %s@%s in %s\n",
				cred.Username, cred.AuthDB, credentialsFile)
			return err
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username to create")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password to derive the SCRAM verifier from")
	cmd.Flags().StringVar(&authDB, "authdb", "admin", "authentication database")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "path to the JSON credentials file (defaults to config auth.credentialsFile)")
	return cmd
}
