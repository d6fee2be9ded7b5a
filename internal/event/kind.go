package event

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the name of a webhook event as sent in the X-Github-Event header,
// without its payload.
type Kind string

const (
	KindBranchProtectionRule         Kind = "branch_protection_rule"
	KindCheckRun                     Kind = "check_run"
	KindCheckSuite                   Kind = "check_suite"
	KindCodeScanningAlert            Kind = "code_scanning_alert"
	KindCommitComment                Kind = "commit_comment"
	KindCreate                       Kind = "create"
	KindDelete                       Kind = "delete"
	KindDependabotAlert              Kind = "dependabot_alert"
	KindDeployKey                    Kind = "deploy_key"
	KindDeployment                   Kind = "deployment"
	KindDeploymentStatus             Kind = "deployment_status"
	KindDiscussion                   Kind = "discussion"
	KindDiscussionComment            Kind = "discussion_comment"
	KindFork                         Kind = "fork"
	KindGithubAppAuthorization       Kind = "github_app_authorization"
	KindGollum                       Kind = "gollum"
	KindInstallation                 Kind = "installation"
	KindInstallationRepositories     Kind = "installation_repositories"
	KindInstallationTarget           Kind = "installation_target"
	KindIssueComment                 Kind = "issue_comment"
	KindIssues                       Kind = "issues"
	KindLabel                        Kind = "label"
	KindMarketplacePurchase          Kind = "marketplace_purchase"
	KindMember                       Kind = "member"
	KindMembership                   Kind = "membership"
	KindMergeGroup                   Kind = "merge_group"
	KindMeta                         Kind = "meta"
	KindMilestone                    Kind = "milestone"
	KindOrgBlock                     Kind = "org_block"
	KindOrganization                 Kind = "organization"
	KindPackage                      Kind = "package"
	KindPageBuild                    Kind = "page_build"
	KindPing                         Kind = "ping"
	KindProjectCard                  Kind = "project_card"
	KindProject                      Kind = "project"
	KindProjectColumn                Kind = "project_column"
	KindProjectsV2                   Kind = "projects_v2"
	KindProjectsV2Item               Kind = "projects_v2_item"
	KindPublic                       Kind = "public"
	KindPullRequest                  Kind = "pull_request"
	KindPullRequestReviewComment     Kind = "pull_request_review_comment"
	KindPullRequestReview            Kind = "pull_request_review"
	KindPullRequestReviewThread      Kind = "pull_request_review_thread"
	KindPush                         Kind = "push"
	KindRegistryPackage              Kind = "registry_package"
	KindRelease                      Kind = "release"
	KindRepository                   Kind = "repository"
	KindRepositoryDispatch           Kind = "repository_dispatch"
	KindRepositoryImport             Kind = "repository_import"
	KindRepositoryVulnerabilityAlert Kind = "repository_vulnerability_alert"
	KindSecretScanningAlert          Kind = "secret_scanning_alert"
	KindSecretScanningAlertLocation  Kind = "secret_scanning_alert_location"
	KindSecurityAdvisory             Kind = "security_advisory"
	KindSecurityAndAnalysis          Kind = "security_and_analysis"
	KindSponsorship                  Kind = "sponsorship"
	KindStar                         Kind = "star"
	KindStatus                       Kind = "status"
	KindTeamAdd                      Kind = "team_add"
	KindTeam                         Kind = "team"
	KindWatch                        Kind = "watch"
	KindWorkflowDispatch             Kind = "workflow_dispatch"
	KindWorkflowJob                  Kind = "workflow_job"
	KindWorkflowRun                  Kind = "workflow_run"
)

// known lists every event name the decoder accepts. Variants without a
// typed payload decode to *Opaque.
var known = map[Kind]struct{}{
	KindBranchProtectionRule:         {},
	KindCheckRun:                     {},
	KindCheckSuite:                   {},
	KindCodeScanningAlert:            {},
	KindCommitComment:                {},
	KindCreate:                       {},
	KindDelete:                       {},
	KindDependabotAlert:              {},
	KindDeployKey:                    {},
	KindDeployment:                   {},
	KindDeploymentStatus:             {},
	KindDiscussion:                   {},
	KindDiscussionComment:            {},
	KindFork:                         {},
	KindGithubAppAuthorization:       {},
	KindGollum:                       {},
	KindInstallation:                 {},
	KindInstallationRepositories:     {},
	KindInstallationTarget:           {},
	KindIssueComment:                 {},
	KindIssues:                       {},
	KindLabel:                        {},
	KindMarketplacePurchase:          {},
	KindMember:                       {},
	KindMembership:                   {},
	KindMergeGroup:                   {},
	KindMeta:                         {},
	KindMilestone:                    {},
	KindOrgBlock:                     {},
	KindOrganization:                 {},
	KindPackage:                      {},
	KindPageBuild:                    {},
	KindPing:                         {},
	KindProjectCard:                  {},
	KindProject:                      {},
	KindProjectColumn:                {},
	KindProjectsV2:                   {},
	KindProjectsV2Item:               {},
	KindPublic:                       {},
	KindPullRequest:                  {},
	KindPullRequestReviewComment:     {},
	KindPullRequestReview:            {},
	KindPullRequestReviewThread:      {},
	KindPush:                         {},
	KindRegistryPackage:              {},
	KindRelease:                      {},
	KindRepository:                   {},
	KindRepositoryDispatch:           {},
	KindRepositoryImport:             {},
	KindRepositoryVulnerabilityAlert: {},
	KindSecretScanningAlert:          {},
	KindSecretScanningAlertLocation:  {},
	KindSecurityAdvisory:             {},
	KindSecurityAndAnalysis:          {},
	KindSponsorship:                  {},
	KindStar:                         {},
	KindStatus:                       {},
	KindTeamAdd:                      {},
	KindTeam:                         {},
	KindWatch:                        {},
	KindWorkflowDispatch:             {},
	KindWorkflowJob:                  {},
	KindWorkflowRun:                  {},
}

// UnknownKindError is returned when an event name is not in the kind table.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

// ParseKind validates an event name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.TrimSpace(name))
	if _, ok := known[k]; !ok {
		return "", &UnknownKindError{Name: name}
	}
	return k, nil
}

// ParseKinds parses a comma separated list such as "push,ping".
func ParseKinds(list string) ([]Kind, error) {
	var kinds []Kind
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no events in %q", list)
	}
	return kinds, nil
}

// Kinds returns every known kind in lexical order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(known))
	for k := range known {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is in the kind table.
func (k Kind) Valid() bool {
	_, ok := known[k]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, &UnknownKindError{Name: string(k)}
	}
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown names.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
