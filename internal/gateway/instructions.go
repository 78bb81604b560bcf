package gateway

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"studio/internal/domain"
)

// NarrativeName returns the English display name of the narrative language.
func NarrativeName(lang language.Tag) string {
	if lang == language.Und {
		return "English"
	}
	if name := display.Tags(language.English).Name(lang); name != "" {
		return name
	}
	return lang.String()
}

func languageSplit(lang language.Tag) string {
	return fmt.Sprintf(`Language rules:
- Write "analysis" in %s. It is read by the user.
- Write "prompt" in English only. It is pasted into an image or video model.`, NarrativeName(lang))
}

const directorPersona = `You are a senior art director and prompt engineer. You study visual references with the eye of a cinematographer: subject, composition, lens and framing, lighting, color palette, texture, mood and medium.`

func reverseEngineerInstruction(lang language.Tag, kind domain.MediaKind) string {
	var subject string
	switch kind {
	case domain.MediaVideo:
		subject = "the video clip. Cover camera movement, pacing and transitions as well as the look"
	case domain.MediaText:
		subject = "the written description. Expand it into a concrete visual treatment"
	default:
		subject = "the image"
	}
	return strings.Join([]string{
		directorPersona,
		"Reverse engineer " + subject + ", then write a single prompt that would reproduce its style faithfully.",
		`Give the style a short evocative "title" of at most six words.`,
		languageSplit(lang),
		"Respond with JSON only.",
	}, "\n\n")
}

func refineInstruction(lang language.Tag, withBad bool) string {
	parts := []string{
		directorPersona,
		"You previously produced the analysis and prompt shown. Revise both according to the user's feedback. Keep everything the feedback does not ask to change.",
	}
	if withBad {
		parts = append(parts, "An image generated from the previous prompt is attached as an unsatisfactory result. Identify what went wrong in it compared with the original reference and correct the prompt so the next generation avoids those flaws.")
	}
	parts = append(parts, languageSplit(lang), "Respond with JSON only.")
	return strings.Join(parts, "\n\n")
}

func imageToVideoInstruction(lang language.Tag) string {
	return strings.Join([]string{
		directorPersona,
		"The user confirmed the attached still image as the first frame of a short video. Write a motion prompt for an image-to-video model: describe subject motion, camera movement, timing over roughly five seconds and atmosphere changes. Stay faithful to the still, do not introduce new subjects.",
		languageSplit(lang),
		"Respond with JSON only.",
	}, "\n\n")
}

func refineVideoInstruction(lang language.Tag, withBad bool) string {
	parts := []string{
		directorPersona,
		"You previously produced the motion analysis and prompt shown for animating the confirmed still image. Revise both according to the user's feedback.",
	}
	if withBad {
		parts = append(parts, "A video generated from the previous prompt is attached as an unsatisfactory result. Diagnose its motion problems (warping, drifting subjects, wrong pacing, unwanted cuts) and correct the prompt.")
	}
	parts = append(parts, languageSplit(lang), "Respond with JSON only.")
	return strings.Join(parts, "\n\n")
}

func wallpaperFusionInstruction(lang language.Tag, withSubject bool) string {
	task := "Design a wallpaper in the style of the style source. Invent a fitting subject."
	if withSubject {
		task = "Design a wallpaper that renders the subject in the style of the style source. Keep the subject recognizable, take palette, lighting, texture and medium from the style source."
	}
	return strings.Join([]string{
		directorPersona,
		task,
		"Honor any additional requirement. Target a clean composition that works as a desktop or phone background.",
		`Give the result a short "title" of at most six words.`,
		languageSplit(lang),
		"Respond with JSON only.",
	}, "\n\n")
}

func stockSeoInstruction(kind domain.MediaKind) string {
	subject := "image"
	switch kind {
	case domain.MediaVideo:
		subject = "video clip"
	case domain.MediaText:
		subject = "described content"
	}
	return strings.Join([]string{
		"You are a stock media SEO specialist for Adobe Stock and Shutterstock.",
		"Write metadata for the " + subject + ":",
		`- "titles": exactly 2 candidate titles, descriptive, under 200 characters, no trademarks.`,
		`- "bestTitle": the most commercially suitable title.`,
		`- "keywords": 35 to 50 single or two-word keywords in one comma separated string, most important first.`,
		"Output strictly in English regardless of the language of any input.",
		"Respond with JSON only.",
	}, "\n")
}

func marketInsightsInstruction(lang language.Tag, now time.Time) string {
	return strings.Join([]string{
		"You are a stock media market analyst.",
		"Today is " + now.Format("January 2, 2006") + ". Report what buyers will search for over the next 60 days:",
		`- "trends": 3 trending visual themes, each with a title and a short description.`,
		`- "events": upcoming holidays and events, each with a name and 5 to 8 keywords.`,
		`- "keywords": 10 high frequency keywords.`,
		`- "advice": one paragraph of commercial advice for contributors.`,
		"Write descriptions and advice in " + NarrativeName(lang) + ". Write keywords in English.",
		"Respond with JSON only.",
	}, "\n")
}

func transcribeInstruction(lang language.Tag) string {
	return "Transcribe the spoken audio verbatim into \"text\". The speaker most likely uses " + NarrativeName(lang) + ". Return an empty string when nothing is said. Respond with JSON only."
}
