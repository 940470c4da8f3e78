package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// actionLabels maps well-known audit actions to display labels. Anything
// not listed falls through to the snake_case to Title Case transform.
var actionLabels = map[string]string{
	"user_suspended":        "User Suspended",
	"user_unsuspended":      "User Unsuspended",
	"user_deleted":          "User Deleted",
	"user_restored":         "User Restored",
	"user_updated":          "User Updated",
	"invitation_created":    "Invitation Sent",
	"invitation_cancelled":  "Invitation Cancelled",
	"invitation_resent":     "Invitation Resent",
	"invitation_deleted":    "Invitation Deleted",
	"impersonation_started": "Impersonation Started",
	"impersonation_ended":   "Impersonation Ended",
	"login_succeeded":       "Login",
	"login_failed":          "Failed Login",
}

var titleCaser = cases.Title(language.English)

// ActionLabel resolves the display label for an audit action.
func ActionLabel(action string) string {
	if label, ok := actionLabels[action]; ok {
		return label
	}
	return titleCaser.String(strings.ReplaceAll(action, "_", " "))
}
