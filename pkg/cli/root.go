// Package cli implements the command-line surface: one Cobra command per
// §6 CLI subcommand, flags bound through viper the way the teacher's
// cmd/root.go binds its own. Each command resolves a DeployConfig (or a
// product's worth of them) via pkg/config, wires the concrete component
// dependencies, and drives the corresponding package.
package cli

import (
	"fmt"
	"os"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/logging"
	"github.com/pleme-io/releaseforge/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "releaseforge [command] [options]",
	Short: "GitOps release orchestrator for federated, multi-service products",
	Long: `
releaseforge drives a product release through gates, image publish,
per-environment deploy, federation composition, dashboards, and
post-deploy verification.

  # run pre-release validation gates
  releaseforge prerelease --product acme --service api

  # release one service end to end
  releaseforge orchestrate-release --product acme --service api --env all

  # release every service in a product
  releaseforge product-release --product acme --env all

  # roll a service back to its previous artifact tag
  releaseforge rollback --product acme --service api --env staging
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("version") {
			fmt.Println(version.Version)
			os.Exit(0)
		}
		logging.InitFromViper(os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print version information and quit")
	rootCmd.PersistentFlags().IntP("log-level", "", 2, "Set the log level (from 0 to 9)")
	rootCmd.PersistentFlags().String("repo-root", "", "Repository root (defaults to the nearest .git ancestor of the working directory)")
	rootCmd.PersistentFlags().String("k8s-root", "", "Root of the GitOps manifest tree (clusters/<cluster>/products/...)")
	rootCmd.PersistentFlags().String("product", "", "Product name")
	rootCmd.PersistentFlags().String("service", "", "Service name (omit for product-wide commands)")
	rootCmd.PersistentFlags().String("env", "all", "Target environment name, or \"all\" for the configured environment order")
	rootCmd.PersistentFlags().String("kubeconfig", "", "Path to kubeconfig (defaults to in-cluster config, then $KUBECONFIG)")
	rootCmd.PersistentFlags().String("git-commit", "", "Git commit SHA to stamp onto supergraph metadata and manifest commit messages")
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(prereleaseCmd)
	rootCmd.AddCommand(orchestrateReleaseCmd)
	rootCmd.AddCommand(productReleaseCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(fluxReconcileCmd)
	rootCmd.AddCommand(runMigrationsCmd)
	rootCmd.AddCommand(updateFederationCmd)
	rootCmd.AddCommand(postDeployVerifyCmd)
}

// Execute runs the command tree; errors are mapped to process exit codes
// through apperror.ExitCode so CI can branch on failure kind.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(apperror.ExitCode(err))
	}
}
