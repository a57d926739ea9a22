/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/telekom/rbac-evaluator/pkg/authorizer"
	"github.com/telekom/rbac-evaluator/pkg/policy"
)

// errDenied signals a clean "no" answer so Execute can exit non-zero without
// printing an error, matching kubectl auth can-i.
var errDenied = errors.New("access denied")

var (
	caniNamespace      string
	caniAPIGroup       string
	caniResourceName   string
	caniAs             string
	caniAsGroups       []string
	caniServiceAccount string
	caniOutput         string
)

var caniCmd = &cobra.Command{
	Use:   "can-i VERB (RESOURCE | /PATH)",
	Short: "Check whether a subject may perform an action",
	Long: `Check whether the given subject may perform the given action against the
loaded policy set. Prints "yes" or "no" with the deny reason; a denied check
exits with status 1.

The subject is either a user (--as, optionally with --as-group) or a service
account (--serviceaccount NAMESPACE:NAME). A second argument starting with
"/" is checked as a non-resource URL path.`,
	Example: `  # May the default service account of namespace test get pods in nginx?
  rbac-evaluator can-i get pods -f ./policy -n nginx --serviceaccount test:default

  # May user jane list deployments in the apps API group?
  rbac-evaluator can-i list deployments -f ./policy -n test --api-group apps --as jane

  # May members of the ops group hit /healthz?
  rbac-evaluator can-i get /healthz -f ./policy --as jane --as-group ops`,
	Args: cobra.ExactArgs(2),
	RunE: runCanI,
}

func init() {
	rootCmd.AddCommand(caniCmd)

	caniCmd.Flags().StringVarP(&caniNamespace, "namespace", "n", "", "Namespace of the request (empty for cluster scope)")
	caniCmd.Flags().StringVar(&caniAPIGroup, "api-group", "", "API group of the resource")
	caniCmd.Flags().StringVar(&caniResourceName, "resource-name", "", "Name of a single resource instance")
	caniCmd.Flags().StringVar(&caniAs, "as", "", "User name to check (service account user names are recognized)")
	caniCmd.Flags().StringArrayVar(&caniAsGroups, "as-group", nil, "Group membership of the subject (repeatable)")
	caniCmd.Flags().StringVar(&caniServiceAccount, "serviceaccount", "", "Service account subject as NAMESPACE:NAME")
	caniCmd.Flags().StringVarP(&caniOutput, "output", "o", "text", "Output format: text or yaml")
}

func runCanI(cmd *cobra.Command, args []string) error {
	subject, err := subjectFromFlags()
	if err != nil {
		return err
	}
	if len(policyPaths) == 0 {
		return fmt.Errorf("no policy manifests given, use --filename")
	}

	store, err := policy.LoadFiles(policyPaths...)
	if err != nil {
		return err
	}

	verb, target := args[0], args[1]
	req := authorizer.Request{
		Subject:   subject,
		Namespace: caniNamespace,
		APIGroup:  caniAPIGroup,
		Name:      caniResourceName,
		Verb:      verb,
	}
	if strings.HasPrefix(target, "/") {
		req.Path = target
	} else {
		req.Resource = target
	}

	eval := authorizer.New(store, setupLog.WithName("authorizer"))
	decision, err := eval.Evaluate(cmd.Context(), req)
	if err != nil {
		return err
	}

	switch caniOutput {
	case "text":
		if decision.Allowed {
			cmd.Println("yes")
		} else {
			cmd.Printf("no - %s\n", decision.Reason)
		}
	case "yaml":
		out, err := yaml.Marshal(decision)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
	default:
		return fmt.Errorf("unknown output format %q", caniOutput)
	}

	if !decision.Allowed {
		return errDenied
	}
	return nil
}

func subjectFromFlags() (policy.Subject, error) {
	switch {
	case caniServiceAccount != "" && caniAs != "":
		return policy.Subject{}, fmt.Errorf("--as and --serviceaccount are mutually exclusive")
	case caniServiceAccount != "":
		namespace, name, ok := strings.Cut(caniServiceAccount, ":")
		if !ok || namespace == "" || name == "" {
			return policy.Subject{}, fmt.Errorf("--serviceaccount must be NAMESPACE:NAME, got %q", caniServiceAccount)
		}
		subject := policy.ServiceAccountSubject(namespace, name)
		subject.Groups = caniAsGroups
		return subject, nil
	case caniAs != "":
		return policy.ParseUser(caniAs, caniAsGroups...), nil
	default:
		return policy.Subject{}, fmt.Errorf("specify a subject with --as or --serviceaccount")
	}
}
