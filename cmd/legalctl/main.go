// Command legalctl 是检索服务的运维命令行：训练稀疏模型、投递索引任务、导出索引、调试检索与签发令牌。
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "legalctl",
	Short:         "Operate the legal retrieval service",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		log.Init(cfg.Log.Level, "console", log.StderrOutput)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./configs/config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
