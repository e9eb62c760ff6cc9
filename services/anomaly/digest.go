package anomaly

import (
	"context"
	"fmt"
	"os"
	"strings"

	anomalyModel "campus-access/models/anomaly"

	"google.golang.org/genai"
)

// GenerateDigest turns the current flags into a short natural-language
// summary for the dashboard header using the Gemini API. Returns an empty
// string when no API key is configured or generation fails; the dashboard
// falls back to the raw flag list.
func GenerateDigest(flags []anomalyModel.Flag) string {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" || len(flags) == 0 {
		return ""
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You are summarizing access control anomalies for a campus security dashboard. ")
	sb.WriteString("Write at most three plain sentences for a non-technical operations officer. ")
	sb.WriteString("Do not use markdown. Flags:\n")
	for _, f := range flags {
		switch f.Kind {
		case anomalyModel.KindExcessiveResets:
			sb.WriteString(fmt.Sprintf("- user %s: %s\n", deref(f.UserID), f.Details))
		case anomalyModel.KindFailureClustering:
			sb.WriteString(fmt.Sprintf("- action point %d: %s\n", derefUint(f.ActionPointID), f.Details))
		}
	}

	content := &genai.Content{
		Parts: []*genai.Part{
			{Text: sb.String()},
		},
	}

	result, err := client.Models.GenerateContent(
		ctx,
		"gemini-2.5-flash-lite",
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(0.1)),
		},
	)
	if err != nil {
		return ""
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUint(u *uint) uint {
	if u == nil {
		return 0
	}
	return *u
}
