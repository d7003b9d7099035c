package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/pkg/token"
)

var (
	tokenSubject   string
	tokenScope     string
	tokenNewSecret bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a service token for the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenNewSecret {
			cmd.Println(token.GenerateRandomString(48))
			return nil
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is empty; set it in the config or LEGALRAG_JWT_SECRET")
		}
		manager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours, cfg.JWT.Issuer)
		signed, err := manager.GenerateToken(tokenSubject, tokenScope)
		if err != nil {
			return err
		}
		cmd.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "legalctl", "token subject")
	tokenCmd.Flags().StringVar(&tokenScope, "scope", "search", "token scope")
	tokenCmd.Flags().BoolVar(&tokenNewSecret, "new-secret", false, "print a random secret instead of a token")
	rootCmd.AddCommand(tokenCmd)
}
