package service

import (
	"errors"
	"strings"

	"github.com/viant/vecflow/apierr"
)

// HintCategory classifies a surfaced error for the user.
type HintCategory string

const (
	HintAuthentication HintCategory = "authentication"
	HintInference      HintCategory = "inference"
	HintIndex          HintCategory = "index"
	HintQuota          HintCategory = "quota"
	HintGeneric        HintCategory = "generic"
)

var hints = map[HintCategory]string{
	HintAuthentication: "check the API key (PINECONE_API_KEY or credentials in the config)",
	HintInference:      "the inference API might not be available in your plan; consider another embedder provider",
	HintIndex:          "check the index name, its host and that it is ready",
	HintQuota:          "a plan quota or rate limit was reached; retry later or reduce the batch size",
	HintGeneric:        "rerun with -v for request logs",
}

// Hint categorizes err and returns a troubleshooting message.
func Hint(err error) (HintCategory, string) {
	category := categorize(err)
	return category, hints[category]
}

func categorize(err error) HintCategory {
	if err == nil {
		return HintGeneric
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierr.KindAuthentication:
			return HintAuthentication
		case apierr.KindQuota:
			return HintQuota
		}
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case StageEmbed, StageQueryEmbed:
			return HintInference
		case StageConnect, StageWaitReady:
			return HintIndex
		}
	}
	if apiErr != nil && (apiErr.Kind == apierr.KindNotFound || apiErr.Kind == apierr.KindTimeout) {
		return HintIndex
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return HintAuthentication
	case strings.Contains(msg, "inference") || strings.Contains(msg, "embed"):
		return HintInference
	case strings.Contains(msg, "index"):
		return HintIndex
	case strings.Contains(msg, "quota") || strings.Contains(msg, "limit"):
		return HintQuota
	}
	return HintGeneric
}
