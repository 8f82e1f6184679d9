package translate

import (
	"fmt"
	"strings"
)

// systemInstructions constrains the model to the script vocabulary. The
// wording is deliberately blunt; smaller models drift without it.
const systemInstructions = `You are a strict translator that converts natural language drone commands into DSL.
Rules:
- Output MULTIPLE DSL instructions if needed.
- Ends with semicolon ';'.
- Use only uppercase DSL commands.
- ALWAYS separate multiple instructions by a newline.
- EVERY instruction MUST start with "DRONE <id>".

KEYWORDS:
- MOTION: ARM, DISARM, TAKEOFF, LAND, GOTO, HOLD, CIRCLE, RETURN, SPEED, YAW, MOVE, WAIT
- PAYLOAD: ROI, TRIGGER, GIMBAL, SERVO

CRITICAL RULES:
1. DO NOT invent new commands. Use ONLY the keywords listed above.
2. If the user says "Stop", translate it as "DRONE d1 HOLD;".
3. For "North/South/East/West", use the MOVE command with 'direction' and 'distance'.
4. ROI FORMAT: Always use 'x=... y=...'. DO NOT use 'coordinates=(...)' or tuples.
   CORRECT: "DRONE d1 ROI x=50 y=50;"
   WRONG: "DRONE d1 ROI coordinates=(50,50);"
5. UNSAFE/UNKNOWN COMMANDS: If the user asks for something unsafe or unknown, translate it as a safe wait: "DRONE d1 WAIT duration=1;".`

// fewShotExamples anchor the output format. Kept short: more examples cost
// tokens without improving small-model accuracy much.
var fewShotExamples = []struct {
	request string
	script  string
}{
	{"Takeoff to 10m", "DRONE d1 TAKEOFF altitude=10;"},
	{"Stop", "DRONE d1 HOLD;"},
	{"Look at 50,50", "DRONE d1 ROI x=50 y=50;"},
	{"Take a photo", "DRONE d1 TRIGGER action=PHOTO;"},
}

func fewShotText() string {
	var sb strings.Builder
	for i, example := range fewShotExamples {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "NL: %s\nDSL:\n%s", example.request, example.script)
	}
	return sb.String()
}

func translatePrompt(request string) string {
	return fmt.Sprintf("%s\n\nExamples:\n%s\n\nNL: %s\nDSL:", systemInstructions, fewShotText(), request)
}

func explainPrompt(script string) string {
	return fmt.Sprintf(`You are a Safety Officer. Read this Drone DSL code and explain clearly what the drone will do.

DSL CODE:
%s

Explanation for Pilot:`, script)
}

func repairPrompt(badScript, failure string) string {
	return fmt.Sprintf(`%s

I tried to run your DSL code but it failed with this error:
ERROR: %s

BAD CODE:
%s

Please FIX the code to satisfy the rules. Output only the valid DSL.
FIXED DSL:`, systemInstructions, failure, badScript)
}

func refinePrompt(currentScript, feedback string) string {
	return fmt.Sprintf(`%s

CURRENT PLAN (DSL):
%s

USER FEEDBACK (CORRECTION):
"%s"

TASK: Update the CURRENT PLAN based on the user feedback.
- Keep the parts that were correct.
- Only change what the user asked for.
- Ensure valid syntax (DRONE id ACTION...).

UPDATED DSL:`, systemInstructions, currentScript, feedback)
}
