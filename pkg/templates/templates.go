// Package templates renders the files shook init installs. Each template
// ships embedded in the binary and can be overridden from the filesystem.
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Template names
const (
	SystemdService = "systemd-service"
)

//go:embed files/*.template
var builtin embed.FS

// TemplateData holds variables for template rendering.
type TemplateData map[string]string

var placeholderPattern = regexp.MustCompile(`\{\{[A-Z_]+\}\}`)

// GetTemplatePaths returns the override search paths for a template
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	return []string{
		filepath.Join(".", "templates", filename),
		filepath.Join(".", "config", "templates", filename),
		filepath.Join("/etc", "shook", "templates", filename),
	}
}

// GetTemplate returns the raw template content by name.
// Overrides are looked up in the following order before falling back to
// the embedded copy:
// 1. ./templates/<name>.template
// 2. ./config/templates/<name>.template
// 3. /etc/shook/templates/<name>.template
func GetTemplate(name string) (string, error) {
	// Validate template name
	if !ValidateTemplate(name) {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	for _, path := range GetTemplatePaths(name) {
		if content, err := os.ReadFile(path); err == nil {
			return string(content), nil
		}
	}

	content, err := builtin.ReadFile("files/" + name + ".template")
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return string(content), nil
}

// Render renders a template with the given data.
// Uses {{PLACEHOLDER}} syntax for variable substitution. A placeholder
// left without a value is an error, so a unit file never ships with
// a literal {{...}} in it.
//
// Example:
//
//	data := TemplateData{
//	    "SYSTEM_NAME": "site",
//	    "REPO_PATH":   "/srv/site",
//	}
//	rendered, err := Render(SystemdService, data)
func Render(templateName string, data TemplateData) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	// Replace placeholders
	rendered := tmplContent
	for key, value := range data {
		placeholder := fmt.Sprintf("{{%s}}", key)
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}

	if left := placeholderPattern.FindAllString(rendered, -1); len(left) > 0 {
		sort.Strings(left)
		return "", fmt.Errorf("template %s: no value for %s", templateName, strings.Join(left, ", "))
	}

	return rendered, nil
}

// ServiceData are the values of the shook systemd unit.
type ServiceData struct {
	SystemName string // the managed service, for the description
	RepoPath   string
	Binary     string
	ConfigPath string
	EnvFile    string
	DBPath     string
}

// RenderSystemdService renders the systemd service template.
func RenderSystemdService(d ServiceData) (string, error) {
	return Render(SystemdService, TemplateData{
		"SYSTEM_NAME": d.SystemName,
		"REPO_PATH":   d.RepoPath,
		"BINARY":      d.Binary,
		"CONFIG":      d.ConfigPath,
		"ENV_FILE":    d.EnvFile,
		"DB_PATH":     d.DBPath,
	})
}

// ValidateTemplate checks if a template name is valid.
func ValidateTemplate(name string) bool {
	validNames := map[string]bool{
		SystemdService: true,
	}
	return validNames[name]
}
