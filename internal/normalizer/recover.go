package normalizer

import "strings"

// rawSearchMarkers signal the model pasted search-tool output verbatim
// instead of summarizing it.
var rawSearchMarkers = []string{
	"**Search results for",
	"Results from web_search",
	"Search results for",
}

// weatherSiteMarkers are domains that show up when weather pages are pasted
// wholesale into the reply.
var weatherSiteMarkers = []string{
	"wetter.com",
	"wetteronline",
	"weather.com",
	"accuweather",
	"timeanddate.com",
}

// navigationNoise is boilerplate scraped from page chrome.
var navigationNoise = []string{
	"Close menu",
	"Open menu",
	"Skip to content",
	"Accept cookies",
	"Cookie settings",
}

func looksLikeRawSearch(content string) bool {
	for _, marker := range rawSearchMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	lower := strings.ToLower(content)
	for _, domain := range weatherSiteMarkers {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// recoverRawSearch salvages readable text from pasted search output: URLs,
// markdown headers, and page chrome are dropped, leaving the lines that
// carry information.
func recoverRawSearch(content string) string {
	content = urlRe.ReplaceAllString(content, "")
	content = markdownHeaderRe.ReplaceAllString(content, "")
	for _, noise := range navigationNoise {
		content = strings.ReplaceAll(content, noise, "")
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*-•"))
		if line == "" {
			continue
		}
		skip := false
		for _, marker := range rawSearchMarkers {
			if strings.Contains(line, strings.Trim(marker, "*")) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
