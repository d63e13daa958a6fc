package azure

import (
	"net/url"
	"strings"
)

// Resolve splits a full Azure OpenAI deployment URL into the endpoint base URL
// and the deployment name.
//
// A URL such as
//
//	https://acme-east2.cognitiveservices.azure.com/openai/deployments/gpt-4o-mini/chat/completions?api-version=2025-01-01-preview
//
// resolves to base URL "https://acme-east2.cognitiveservices.azure.com/openai/"
// and deployment "gpt-4o-mini". The operation suffix and the query string are
// discarded. The base URL is always scheme://host/openai/, no matter how many
// path segments follow. The deployment is the segment right after the literal
// "deployments" segment, or empty when the path has none.
//
// An empty input resolves to two empty strings so callers can treat the
// endpoint as not configured and fail before any network call. Malformed URLs
// return whatever error net/url produces, untouched.
func Resolve(fullURL string) (baseURL, deployment string, err error) {
	if fullURL == "" {
		return "", "", nil
	}

	parsed, err := url.Parse(fullURL)
	if err != nil {
		return "", "", err
	}

	baseURL = parsed.Scheme + "://" + parsed.Host + "/openai/"

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "deployments" && i+1 < len(segments) {
			deployment = segments[i+1]
			break
		}
	}

	return baseURL, deployment, nil
}
