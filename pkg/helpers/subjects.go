package helpers

import "strings"

// Constants for user identity parsing.
const (
	systemPrefix       = "system"
	serviceAccountKind = "serviceaccount"
)

// SubjectKey builds a deterministic composite key for a subject. Two subjects
// are the same grantee exactly when their keys are equal.
func SubjectKey(kind, name, namespace string) string {
	return kind + "|" + namespace + "|" + name
}

// ParseServiceAccountUser splits a Kubernetes service account user name of
// the form "system:serviceaccount:<namespace>:<name>". The second return
// value is false when the user name is not a service account.
func ParseServiceAccountUser(user string) (namespace, name string, ok bool) {
	parts := strings.Split(user, ":")
	if len(parts) != 4 || parts[0] != systemPrefix || parts[1] != serviceAccountKind {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// FormatServiceAccountUser renders the canonical user name of a service
// account, the inverse of ParseServiceAccountUser.
func FormatServiceAccountUser(namespace, name string) string {
	return systemPrefix + ":" + serviceAccountKind + ":" + namespace + ":" + name
}
