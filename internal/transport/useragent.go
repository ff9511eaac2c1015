package transport

import "fmt"

// DefaultUserAgent is sent when no User-Agent is configured.
const DefaultUserAgent = "chefriend-cli/dev"

// UserAgent builds the product User-Agent for a build version.
func UserAgent(version string) string {
	if version == "" {
		return DefaultUserAgent
	}
	return fmt.Sprintf("chefriend-cli/%s", version)
}
