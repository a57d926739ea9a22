/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/telekom/rbac-evaluator/internal/system"
)

var (
	setupLog    logr.Logger
	verbosity   int
	policyPaths []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rbac-evaluator",
	Short: "Evaluate Kubernetes RBAC policy offline",
	Long: `rbac-evaluator loads Role, ClusterRole, RoleBinding, ClusterRoleBinding
and Namespace manifests from disk and answers authorization questions exactly
as the Kubernetes RBAC authorizer would, without a cluster.

Check a single permission the way "kubectl auth can-i" does, or run a
SubjectAccessReview webhook endpoint over the loaded policy set.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = flag.Set("v", strconv.Itoa(verbosity))
		setupLog = klog.NewKlogr().WithName("setup")
		setupLog.V(2).Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log level (0-9)")
	rootCmd.PersistentFlags().StringSliceVarP(&policyPaths, "filename", "f", nil,
		"Policy manifest files or directories to load (repeatable)")
}
