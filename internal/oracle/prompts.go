package oracle

import (
	"fmt"
	"strings"

	"github.com/mpataki/figwalk/internal/models"
)

// DefaultPersona is used when a session does not name one.
const DefaultPersona = "A boomer using an app for the first time"

// DefaultProfile gives the default persona a fuller background.
const DefaultProfile = `Persona Context:
Name: Linda Thompson
Age: 67
Occupation: Retired elementary school teacher
Tech Comfort Level: Beginner-to-Intermediate
Devices Used: iPhone SE (2020), Windows laptop (used mainly for email and recipes)

Background:
Linda is a friendly, thoughtful, and curious retiree who enjoys gardening, reading mystery novels, and keeping in touch with her grandkids via FaceTime. She is not afraid to try new tech, but she often finds modern apps overwhelming, especially those with lots of icons, unfamiliar terminology, or nested menus. Her patience is high, but her frustration kicks in when she does not understand what went wrong or if things change suddenly.

Personality Traits:
- Likes to read everything before clicking
- Frequently double-checks actions before confirming
- Trusts brands that feel "safe" and don't rush her
- Notices font size, color contrast, and layout spacing more than younger users

Common Challenges:
- Struggles with gesture-based navigation (e.g., swiping, long press)
- Gets confused by hamburger menus and unlabeled icons
- Often taps the wrong button due to small touch targets
- Might not notice subtle notifications or badges

Favorite Phrase:
"I just want it to tell me what to do, plain and simple."`

// challengeTemplate must stay in step with ParseReply.
const challengeTemplate = `You are embodying a specific user persona to complete a challenge by navigating a UI.

**Persona:** ${persona}
**Challenge:** '${challenge}'

Analyze the current screen and explain your thought process from the persona's point of view. What would you do next to move towards completing the challenge? Be true to the persona; if the UI is confusing or if it's in character, you might make a mistake or click the wrong thing. Your goal is to simulate a realistic user journey, including potential errors.

---

After your thought process, you must provide three pieces of information on separate lines for the system to parse:
1.  Based on your reasoning, identify the *single UI element* you would interact with to proceed. This could be the correct element, or an incorrect one if the persona is confused. Your answer for this part MUST be in the format: ACTION_COMPONENT: "Exact Name of the UI Element"
2.  Specify the general location of this element on a 3x3 grid (top-left, top-center, top-right, center-left, center, center-right, bottom-left, bottom-center, bottom-right). Your answer for this part MUST be in the format: ACTION_LOCATION: "location"
3.  After this action, determine if you believe the original challenge has now been fully completed. Your answer for this part MUST be in the format: TASK_COMPLETE: YES or TASK_COMPLETE: NO
`

// summaryTemplate must stay in step with ParseSUSScore.
const summaryTemplate = `
You are a world-class UI/UX design expert who has just observed a user persona complete a task.
Based on the provided transcript of the user's journey, perform a comprehensive System Usability Scale (SUS) analysis for the *entire flow*.

**User Persona:** ${persona}
**User's Challenge:** ${challenge}

**Transcript of User's Thought Process Step-by-Step:**
---
${journey}
---

Now, provide a new, distinct section titled '### Overall Usability Analysis'.

In this section, evaluate the interface against the 10 standard SUS statements, considering the entire journey from the provided persona's perspective.
For each statement, create a ` + "`####`" + ` markdown sub-header that includes the full question and your rating out of 5. On the next line, provide the justification as plain text. Do not use bullet points or numbered lists.

The 10 SUS statements are:
1. I think that I would like to use this system frequently.
2. I found the system unnecessarily complex.
3. I thought the system was easy to use.
4. I think that I would need the support of a technical person to be able to use this system.
5. I found the various functions in this system were well integrated.
6. I thought there was too much inconsistency in this system.
7. I would imagine that most people would learn to use this system very quickly.
8. I found the system very cumbersome to use.
9. I felt very confident using the system.
10. I needed to learn a lot of things before I could get going with this system.

After evaluating all 10 statements, calculate the final SUS score. The formula is: sum of [(rating for odd items - 1) + (5 - rating for even items)] and then multiply the total sum by 2.5.

Present the final score FIRST, on its own line, in the format: FINAL_SUS_SCORE: [score].

After presenting the score, provide a detailed interpretation of what this score signifies in terms of overall usability (e.g., Excellent, Good, OK, Poor, or Awful), summarizing the key pain points and successes observed during the user's journey.
`

// Instruction builds the per-screen instruction. profile, when set, is
// prepended as extra persona background.
func Instruction(profile, persona, challenge string) string {
	body := strings.NewReplacer(
		"${persona}", persona,
		"${challenge}", challenge,
	).Replace(challengeTemplate)

	if strings.TrimSpace(profile) == "" {
		return body
	}
	return profile + "\n\n" + body
}

// SummaryPrompt builds the narrative prompt for a run.
func SummaryPrompt(req SummaryRequest) string {
	return strings.NewReplacer(
		"${persona}", req.Persona,
		"${challenge}", req.Challenge,
		"${journey}", req.Transcript,
	).Replace(summaryTemplate)
}

// Transcript renders the steps of a run as the journey shown to Summarize.
func Transcript(steps []*models.Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, fmt.Sprintf("Step %d on screen \"%s\":\n%s", s.Index, s.NodeName, s.Response))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
