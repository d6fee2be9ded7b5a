package event

import (
	"encoding/json"
	"fmt"
)

type Commit struct {
	Added     []string  `json:"added"`
	Author    Author    `json:"author"`
	Committer Committer `json:"committer"`
	Distinct  bool      `json:"distinct"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Modified  []string  `json:"modified"`
	Removed   []string  `json:"removed"`
	Timestamp string    `json:"timestamp"`
	TreeID    string    `json:"tree_id"`
	URL       string    `json:"url"`
}

type Author struct {
	Date     *string `json:"date,omitempty"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Username *string `json:"username,omitempty"`
}

// Committer differs from Author only in that the email may be absent.
type Committer struct {
	Date     *string `json:"date,omitempty"`
	Email    *string `json:"email,omitempty"`
	Name     string  `json:"name"`
	Username *string `json:"username,omitempty"`
}

type Pusher struct {
	Date     *string `json:"date,omitempty"`
	Email    *string `json:"email"`
	Name     string  `json:"name"`
	Username *string `json:"username,omitempty"`
}

type Hook struct {
	Active        bool          `json:"active"`
	AppID         *int64        `json:"app_id,omitempty"`
	Config        HookConfig    `json:"config"`
	CreatedAt     string        `json:"created_at"`
	DeliveriesURL *string       `json:"deliveries_url,omitempty"`
	Events        []string      `json:"events"`
	ID            int64         `json:"id"`
	LastResponse  *LastResponse `json:"last_response,omitempty"`
	Name          HookName      `json:"name"`
	PingURL       *string       `json:"ping_url,omitempty"`
	TestURL       *string       `json:"test_url,omitempty"`
	Type          string        `json:"type"`
	UpdatedAt     string        `json:"updated_at"`
	URL           *string       `json:"url,omitempty"`
}

type HookConfig struct {
	ContentType ContentType    `json:"content_type"`
	InsecureSSL NumberOrString `json:"insecure_ssl"`
	Secret      *string        `json:"secret,omitempty"`
	URL         string         `json:"url"`
}

type LastResponse struct {
	Code    *int64  `json:"code"`
	Status  *string `json:"status"`
	Message *string `json:"message"`
}

type ProtectionRule struct {
	AdminEnforced                            bool             `json:"admin_enforced"`
	AllowDeletionsEnforcementLevel           EnforcementLevel `json:"allow_deletions_enforcement_level"`
	AllowForcePushesEnforcementLevel         EnforcementLevel `json:"allow_force_pushes_enforcement_level"`
	AuthorizedActorNames                     []string         `json:"authorized_actor_names"`
	AuthorizedActorsOnly                     bool             `json:"authorized_actors_only"`
	AuthorizedDismissalActorsOnly            bool             `json:"authorized_dismissal_actors_only"`
	CreateProtected                          *bool            `json:"create_protected,omitempty"`
	CreatedAt                                string           `json:"created_at"`
	DismissStaleReviewsOnPush                bool             `json:"dismiss_stale_reviews_on_push"`
	ID                                       int64            `json:"id"`
	IgnoreApprovalsFromContributors          bool             `json:"ignore_approvals_from_contributors"`
	LinearHistoryRequirementEnforcementLevel EnforcementLevel `json:"linear_history_requirement_enforcement_level"`
	MergeQueueEnforcementLevel               EnforcementLevel `json:"merge_queue_enforcement_level"`
	Name                                     string           `json:"name"`
	PullRequestReviewsEnforcementLevel       EnforcementLevel `json:"pull_request_reviews_enforcement_level"`
	RepositoryID                             int64            `json:"repository_id"`
	RequireCodeOwnerReview                   bool             `json:"require_code_owner_review"`
	RequiredApprovingReviewCount             int64            `json:"required_approving_review_count"`
	RequiredConversationResolutionLevel      EnforcementLevel `json:"required_conversation_resolution_level"`
	RequiredDeploymentsEnforcementLevel      EnforcementLevel `json:"required_deployments_enforcement_level"`
	RequiredStatusChecks                     []string         `json:"required_status_checks"`
	RequiredStatusChecksEnforcementLevel     EnforcementLevel `json:"required_status_checks_enforcement_level"`
	SignatureRequirementEnforcementLevel     EnforcementLevel `json:"signature_requirement_enforcement_level"`
	StrictRequiredStatusChecksPolicy         bool             `json:"strict_required_status_checks_policy"`
	UpdatedAt                                string           `json:"updated_at"`
}

// EnforcementLevel is the scope a branch protection setting applies to.
type EnforcementLevel string

const (
	EnforcementOff       EnforcementLevel = "off"
	EnforcementNonAdmins EnforcementLevel = "non_admins"
	EnforcementEveryone  EnforcementLevel = "everyone"
)

func (EnforcementLevel) allowed() []string {
	return []string{string(EnforcementOff), string(EnforcementNonAdmins), string(EnforcementEveryone)}
}

// ContentType is the body encoding configured on a webhook.
type ContentType string

const (
	ContentTypeJSON ContentType = "json"
	ContentTypeForm ContentType = "form"
)

func (ContentType) allowed() []string {
	return []string{string(ContentTypeJSON), string(ContentTypeForm)}
}

// HookName is always "web" for repository webhooks.
type HookName string

func (HookName) allowed() []string {
	return []string{"web"}
}

// NumberOrString holds a field GitHub sends either as "0" or as 0.
type NumberOrString struct {
	Number *float64
	String string
}

func (n NumberOrString) MarshalJSON() ([]byte, error) {
	if n.Number != nil {
		return json.Marshal(*n.Number)
	}
	return json.Marshal(n.String)
}

func (n *NumberOrString) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = NumberOrString{Number: &f}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number or string")
	}
	*n = NumberOrString{String: s}
	return nil
}

func (NumberOrString) checkJSON(v any) error {
	switch v.(type) {
	case string, json.Number:
		return nil
	}
	return fmt.Errorf("invalid type: %s, expected number or string", jsonKind(v))
}
